package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/mahudhurio/core/subject"
	"github.com/trezcool/mahudhurio/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrSvc  *user.Service
	subjSvc *subject.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  adduser -name NAME -email EMAIL -role teacher|student [-roll ROLL -year YEAR -semester SEMESTER] - create a user; the password is prompted next")
	fmt.Println("  seedsubjects - load the default subject catalog")
	fmt.Println("  migrate COMMAND [ARGS...] - run database migrations (up, down, status, ...)")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserRole := addUserCmd.String("role", user.RoleTeacher, "The user's role: teacher|student.")
	addUserRoll := addUserCmd.String("roll", "", "The student's roll number.")
	addUserYear := addUserCmd.Int("year", 0, "The student's year: 1|2|3.")
	addUserSemester := addUserCmd.Int("semester", 0, "The student's semester: 1..6.")

	switch args[1] {
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(user.NewUser{
			Name:       *addUserName,
			Email:      *addUserEmail,
			Password:   string(pwd),
			Role:       *addUserRole,
			RollNumber: *addUserRoll,
			Year:       *addUserYear,
			Semester:   *addUserSemester,
		})
	case "seedsubjects":
		return cli.seedSubjects()
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}
