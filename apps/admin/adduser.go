package main

import (
	"context"
	"time"

	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/core/user"
)

// addUser updates or creates a user.User
func (cli *commandLine) addUser(uname, email, pwd string, isAdmin bool) error {
	ctx := context.Background()
	uname = core.CleanString(uname, true /* lower */)
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: uname})
	if err == user.ErrNotFound && email != "" {
		usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{Email: email})
	}
	if err != nil {
		if err != user.ErrNotFound {
			return err
		}

		now := time.Now().UTC()
		usr = user.User{
			Username:  uname,
			Email:     email,
			Role:      user.RoleUser,
			IsActive:  true,
			Settings:  user.DefaultSettings(),
			CreatedAt: now,
			UpdatedAt: now,
		}
		if isAdmin {
			usr.Role = user.RoleAdmin
		}
		if err := usr.SetPassword(pwd); err != nil {
			return err
		}
		_, err = cli.usrRepo.CreateUser(ctx, usr)
		return err
	}

	if isAdmin {
		usr.Role = user.RoleAdmin
	}
	if email != "" {
		usr.Email = email
	}
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	active := true
	_, err = cli.usrRepo.UpdateUser(ctx, usr, &active, nil)
	return err
}
