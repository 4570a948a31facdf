package main

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

const (
	exportSheet    = "Users"
	exportPageSize = core.MaxPageSize
	dateTimeLayout = "2006-01-02 15:04"
)

var exportHeader = []string{"ID", "Phone", "Full name", "Roles", "Active", "Created at", "Last login"}

func exportRow(usr user.User) []string {
	active := "no"
	if usr.IsActive {
		active = "yes"
	}
	lastLogin := ""
	if usr.LastLogin.Valid {
		lastLogin = usr.LastLogin.Time.Format(dateTimeLayout)
	}
	return []string{
		usr.ID,
		usr.Phone,
		usr.FullName,
		strings.Join(usr.Roles.Strings(), ", "),
		active,
		usr.CreatedAt.Format(dateTimeLayout),
		lastLogin,
	}
}

// exportUsers writes every user, or only those holding role, to an excel workbook at path.
// It returns the number of exported users.
func (cli *commandLine) exportUsers(path string, role user.Role) (int, error) {
	ctx := context.Background()

	var filter *user.QueryFilter
	if role != "" {
		if !role.Valid() {
			return 0, errors.Errorf("invalid role %q", role)
		}
		filter = &user.QueryFilter{Roles: []user.Role{role}}
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()
	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return 0, errors.Wrap(err, "renaming sheet")
	}

	widths := make([]int, len(exportHeader))
	setRow := func(rowNum int, values []string) error {
		for col, val := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, rowNum)
			if err != nil {
				return err
			}
			if err = f.SetCellStr(exportSheet, cell, val); err != nil {
				return errors.Wrapf(err, "setting cell %s", cell)
			}
			if len(val) > widths[col] {
				widths[col] = len(val)
			}
		}
		return nil
	}

	if err := setRow(1, exportHeader); err != nil {
		return 0, err
	}

	rowNum := 2
	page := &core.Page{Number: 1, Size: exportPageSize}
	for {
		users, count, err := cli.usrSvc.Query(ctx, filter, []core.DBOrdering{{Field: "created_at", Ascending: true}}, page)
		if err != nil {
			return 0, err
		}
		for _, usr := range users {
			if err = setRow(rowNum, exportRow(usr)); err != nil {
				return 0, err
			}
			rowNum++
		}
		if !page.HasNext(count) {
			break
		}
		page.Number++
	}

	// header style & column widths
	lastCol, _ := excelize.ColumnNumberToName(len(exportHeader))
	if bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetCellStyle(exportSheet, "A1", lastCol+"1", bold)
	}
	for col, w := range widths {
		name, _ := excelize.ColumnNumberToName(col + 1)
		width := float64(w) * 1.1
		if width < 12 {
			width = 12
		}
		if width > 40 {
			width = 40
		}
		_ = f.SetColWidth(exportSheet, name, name, width)
	}

	if err := f.SaveAs(path); err != nil {
		return 0, errors.Wrapf(err, "saving %s", path)
	}
	return rowNum - 2, nil
}
