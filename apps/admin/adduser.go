package main

import (
	"context"
	"fmt"

	"github.com/trezcool/trackle/core/user"
)

// addUser updates or creates a user acting as `role`.
func (cli *commandLine) addUser(ctx context.Context, uname, email, pwd string, role user.Role) error {
	usr, err := cli.usrSvc.UpdateOrCreate(ctx, uname, email, pwd, role)
	if err != nil {
		return err
	}
	fmt.Printf("user %q (%s) saved\n", usr.Username, usr.Role)
	return nil
}
