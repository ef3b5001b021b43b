package domain

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// same loose check the registration form used
var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// User is a registered bidder. Admins additionally manage auctions and users.
type User struct {
	ID           int64
	Name         string
	Email        string
	RegisteredAt time.Time
	IsAdmin      bool
}

// NewUser holds the fields accepted by UserStore.Create
type NewUser struct {
	Name    string
	Email   string
	IsAdmin bool
}

// Normalize trims the user supplied fields and lowercases the email.
func (n NewUser) Normalize() NewUser {
	n.Name = strings.TrimSpace(n.Name)
	n.Email = strings.ToLower(strings.TrimSpace(n.Email))
	return n
}

// Validate checks the shape of a normalized NewUser.
func (n NewUser) Validate() error {
	if n.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidUser)
	}
	if n.Email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidUser)
	}
	if !emailPattern.MatchString(n.Email) {
		return fmt.Errorf("%w: please enter a valid email", ErrInvalidUser)
	}
	return nil
}

// Profile is the part of a user the user can edit
type Profile struct {
	Name  string
	Email string
}

// Normalize applies the registration normalization to the profile.
func (p Profile) Normalize() Profile {
	n := NewUser{Name: p.Name, Email: p.Email}.Normalize()
	return Profile{Name: n.Name, Email: n.Email}
}

// Validate applies the registration rules to a normalized profile.
func (p Profile) Validate() error {
	return NewUser{Name: p.Name, Email: p.Email}.Validate()
}
