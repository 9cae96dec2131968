package main

import (
	"context"
	"fmt"

	"github.com/trezcool/mahudhurio/core/user"
)

// addUser creates a user.User after running the full validation policy.
func (cli *commandLine) addUser(nu user.NewUser) error {
	if err := nu.Validate(); err != nil {
		return err
	}
	usr, err := cli.usrSvc.Create(context.Background(), nu)
	if err != nil {
		return err
	}
	fmt.Printf("%s %q created: %s\n", usr.Role, usr.Name, usr.ID)
	return nil
}
