package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

// addUser updates or creates an active user.User. isAdmin grants the admin role.
func (cli *commandLine) addUser(phone, fullName, pwd string, isAdmin bool) error {
	ctx := context.Background()
	phone = core.CleanPhone(phone)

	usr, err := cli.usrSvc.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Cause(err) != user.ErrNotFound {
			return err
		}

		nu := user.NewUser{Phone: phone, FullName: fullName, Password: pwd, PasswordConfirm: pwd}
		if isAdmin {
			nu.Roles = user.Roles{user.RoleAdmin}
		}
		if err = nu.Validate(ctx, cli.validate, cli.usrSvc); err != nil {
			return cli.validationMessage(err)
		}
		_, err = cli.usrSvc.Create(ctx, nu)
		return err
	}

	active := true
	uu := user.UpdateUser{FullName: fullName, IsActive: &active, Password: pwd, PasswordConfirm: pwd}
	if isAdmin {
		uu.Roles = usr.Roles.Add(user.RoleAdmin)
	}
	if err = uu.Validate(ctx, usr, cli.validate, cli.usrSvc); err != nil {
		return cli.validationMessage(err)
	}
	_, err = cli.usrSvc.Update(ctx, usr, uu)
	return err
}
