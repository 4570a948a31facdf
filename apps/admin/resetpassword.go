package main

import (
	"context"

	"github.com/maktab-uz/maktab/core/user"
)

// resetPassword sets a new password for the user owning phone, the password policy applies.
func (cli *commandLine) resetPassword(phone, pwd string) error {
	ctx := context.Background()

	snp := user.SetNewPassword{Phone: phone, NewPassword: pwd, ConfirmPassword: pwd}
	if err := snp.Validate(cli.validate); err != nil {
		return cli.validationMessage(err)
	}

	usr, err := cli.usrSvc.GetByPhone(ctx, snp.Phone)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.SetPassword(ctx, usr, pwd)
	return err
}
