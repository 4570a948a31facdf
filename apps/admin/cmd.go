package main

import (
	"database/sql"
	"flag"
	"fmt"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/term"

	"github.com/maktab-uz/maktab/core"
	"github.com/maktab-uz/maktab/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	db         *sql.DB
	usrSvc     user.Service
	validate   *validator.Validate
	translator ut.Translator
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  createdb - create the app database role and database if they do not exist")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command on the app database (up, down, status, ...)")
	fmt.Println("  createuser -phone PHONE [-name NAME] [-admin] - create or update a user, the password will be prompted")
	fmt.Println("  resetpassword -phone PHONE - reset user's password, the password will be prompted")
	fmt.Println("  exportusers [-o FILE] [-role ROLE] - export users to an excel workbook")
}

// promptPassword reads a password twice from the terminal.
func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	fmt.Print("Confirm password:")
	confirm, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if string(pwd) != string(confirm) {
		return "", errors.New("passwords do not match")
	}
	return string(pwd), nil
}

// validationMessage flattens validation errors into a single line.
func (cli *commandLine) validationMessage(err error) error {
	vErrs, ok := errors.Cause(err).(validator.ValidationErrors)
	if !ok {
		return err
	}
	msgs := make([]string, 0, len(vErrs))
	for _, vErr := range vErrs {
		msgs = append(msgs, vErr.Field()+": "+vErr.Translate(cli.translator))
	}
	return errors.New(strings.Join(msgs, "; "))
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	createUserCmd := flag.NewFlagSet("createuser", flag.ContinueOnError)
	createUserPhone := createUserCmd.String("phone", "", "The user's phone number. The password will be prompted next.")
	createUserName := createUserCmd.String("name", "", "The user's full name.")
	createUserAdmin := createUserCmd.Bool("admin", false, "Grant the admin role.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordPhone := resetPasswordCmd.String("phone", "", "The user's phone number. The password will be prompted next.")

	exportUsersCmd := flag.NewFlagSet("exportusers", flag.ContinueOnError)
	exportUsersOut := exportUsersCmd.String("o", "users.xlsx", "The path of the workbook to write.")
	exportUsersRole := exportUsersCmd.String("role", "", "Only export the users holding this role.")

	switch args[1] {
	case "createdb":
		return cli.createDB()

	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "createuser":
		if err := createUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *createUserPhone == "" {
			createUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			createUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*createUserPhone, *createUserName, pwd, *createUserAdmin)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordPhone == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		return cli.resetPassword(*resetPasswordPhone, pwd)

	case "exportusers":
		if err := exportUsersCmd.Parse(args[2:]); err != nil {
			return err
		}
		n, err := cli.exportUsers(*exportUsersOut, user.Role(*exportUsersRole))
		if err != nil {
			return err
		}
		fmt.Printf("%d users exported to %s\n", n, *exportUsersOut)
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}
