package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/maktab-uz/maktab/core/parent"
	"github.com/maktab-uz/maktab/core/user"
)

func CreateUser(
	t *testing.T,
	repo user.Repository,
	fullName, phone, pwd string,
	roles user.Roles,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Phone:     phone,
		FullName:  fullName,
		Roles:     roles.Normalize(),
		IsActive:  isActive,
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

// CreateProfile onboards a User with a profile of kind through repo.
func CreateProfile(
	t *testing.T,
	repo user.Repository,
	kind user.ProfileKind,
	fullName, phone, description string,
) user.Profile {
	t.Helper()

	now := time.Now().UTC()
	usr := user.User{
		Phone:     phone,
		FullName:  fullName,
		Roles:     user.NewRoles(kind.Role()),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	prof := user.Profile{Kind: kind, CreatedAt: now, UpdatedAt: now}
	if description != "" {
		prof.Description.SetValid(description)
	}
	prof, err := repo.CreateProfile(context.Background(), usr, prof)
	if err != nil {
		t.Fatalf("createProfile() failed: %v", err)
	}
	return prof
}

// CreateParent saves a Parent of the students of studentIDs through repo.
func CreateParent(
	t *testing.T,
	repo parent.Repository,
	name, phone string,
	createdAt time.Time,
	studentIDs ...string,
) parent.Parent {
	t.Helper()

	p := parent.Parent{
		Name:       name,
		Surname:    "Skywalker",
		Phone:      phone,
		Address:    "Tatooine",
		StudentIDs: parent.NormalizeIDs(studentIDs),
		CreatedAt:  createdAt.UTC(),
		UpdatedAt:  createdAt.UTC(),
	}
	p, err := repo.CreateParent(context.Background(), p)
	if err != nil {
		t.Fatalf("createParent() failed: %v", err)
	}
	return p
}
