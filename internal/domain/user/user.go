package user

import (
	"strings"

	"github.com/Zhima-Mochi/minishop-delivery/internal/domain/apperr"
)

// User is stored in the users collection under its email.
type User struct {
	Name           string `json:"name"`
	Email          string `json:"email"`
	Address        string `json:"address"`
	HashedPassword string `json:"hashedPassword"`
}

// Profile is the part of a User that may leave the service.
type Profile struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Address string `json:"address"`
}

// PasswordHasher is the one-way keyed hash applied to passwords.
type PasswordHasher interface {
	Hash(password string) string
	Matches(password, hashed string) bool
}

func New(name, email, address, hashedPassword string) (*User, error) {
	u := &User{
		Name:           strings.TrimSpace(name),
		Email:          strings.TrimSpace(email),
		Address:        strings.TrimSpace(address),
		HashedPassword: hashedPassword,
	}
	if u.Name == "" || u.Email == "" || u.Address == "" || u.HashedPassword == "" {
		return nil, apperr.Validation("Missing required fields")
	}
	return u, nil
}

func (u *User) Profile() Profile {
	return Profile{Name: u.Name, Email: u.Email, Address: u.Address}
}
