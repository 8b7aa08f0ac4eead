package testutil

import (
	"context"
	"io/ioutil"
	"path/filepath"
	"testing"
	"time"

	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/core/content"
	"github.com/mwinyimoha/darasa/core/user"
)

// ResetDB rewrites every collection file with an empty document.
// Repositories load from disk on each call so no handle needs refreshing.
func ResetDB(t *testing.T) {
	docs := map[string]string{
		"users.json":    `{"users": []}`,
		"subjects.json": `{"subjects": []}`,
	}
	for name, doc := range docs {
		if err := ioutil.WriteFile(filepath.Join(core.Conf.DataDir, name), []byte(doc), 0644); err != nil {
			t.Fatalf("ResetDB() failed: %v", err)
		}
	}
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	uname, email, pwd, role string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		Settings:  user.DefaultSettings(),
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}

func CreateSubject(
	t *testing.T,
	repo content.Repository,
	name, category, level, status string,
) content.Subject {
	now := time.Now().UTC()
	sub := content.Subject{
		Name:      name,
		Category:  category,
		Level:     level,
		Status:    status,
		CreatedAt: now,
		UpdatedAt: now,
	}
	sub, err := repo.CreateSubject(context.Background(), sub)
	if err != nil {
		t.Fatalf("createSubject() failed: %v", err)
	}
	return sub
}
