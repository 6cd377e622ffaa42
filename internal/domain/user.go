package domain

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinNameLength  = 2
	MaxNameLength  = 100
	MaxEmailLength = 150
)

var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

type User struct {
	ID        int64     `json:"id"`
	Name      string    `json:"nome"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"data_criacao"`
}

type UserInput struct {
	Name  *string `json:"nome"`
	Email *string `json:"email"`
}

// Validate normalizes a create payload. Both fields are required.
func (in UserInput) Validate() (*User, error) {
	if in.Name == nil || strings.TrimSpace(*in.Name) == "" {
		return nil, InvalidInput("field %q is required", "nome")
	}
	if in.Email == nil || strings.TrimSpace(*in.Email) == "" {
		return nil, InvalidInput("field %q is required", "email")
	}

	name, err := NormalizeName(*in.Name)
	if err != nil {
		return nil, err
	}
	email, err := NormalizeEmail(*in.Email)
	if err != nil {
		return nil, err
	}

	return &User{Name: name, Email: email}, nil
}

// Apply validates a partial update and applies it to u. At least one field
// must be present; u is untouched on failure.
func (in UserInput) Apply(u *User) error {
	if in.Name == nil && in.Email == nil {
		return InvalidInput("at least one field (nome or email) must be provided")
	}

	updated := *u
	if in.Name != nil {
		name, err := NormalizeName(*in.Name)
		if err != nil {
			return err
		}
		updated.Name = name
	}
	if in.Email != nil {
		email, err := NormalizeEmail(*in.Email)
		if err != nil {
			return err
		}
		updated.Email = email
	}

	*u = updated
	return nil
}

func NormalizeName(s string) (string, error) {
	name := strings.TrimSpace(s)
	n := utf8.RuneCountInString(name)
	if n < MinNameLength {
		return "", InvalidInput("nome must have at least %d characters", MinNameLength)
	}
	if n > MaxNameLength {
		return "", InvalidInput("nome must have at most %d characters", MaxNameLength)
	}
	return name, nil
}

func NormalizeEmail(s string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(s))
	if len(email) > MaxEmailLength {
		return "", InvalidInput("email must have at most %d characters", MaxEmailLength)
	}
	if !emailPattern.MatchString(email) {
		return "", InvalidInput("email must be a valid address")
	}
	return email, nil
}

type UserRepository interface {
	FindByID(ctx context.Context, id int64) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindAll(ctx context.Context) ([]*User, error)
	Create(ctx context.Context, user *User) error
	Update(ctx context.Context, user *User) error
	Delete(ctx context.Context, id int64) error
	Ping(ctx context.Context) error
}

type UserService interface {
	CreateUser(ctx context.Context, in UserInput) (*User, error)
	GetUserByID(ctx context.Context, id int64) (*User, error)
	ListUsers(ctx context.Context) ([]*User, error)
	UpdateUser(ctx context.Context, id int64, in UserInput) (*User, error)
	DeleteUser(ctx context.Context, id int64) error
}
