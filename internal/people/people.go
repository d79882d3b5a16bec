// Package people holds the person records listed on the people page.
package people

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned for unknown person IDs.
var ErrNotFound = errors.New("person not found")

// Person is one record.
type Person struct {
	ID        string    `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists people.
type Store interface {
	Create(ctx context.Context, p Person) error
	Get(ctx context.Context, id string) (Person, error)
	List(ctx context.Context, limit int) ([]Person, error)
}

// New trims input, validates it and assigns an ID and creation time.
func New(firstName, lastName, email string, now time.Time) (Person, error) {
	p := Person{
		ID:        uuid.NewString(),
		FirstName: strings.TrimSpace(firstName),
		LastName:  strings.TrimSpace(lastName),
		Email:     strings.TrimSpace(email),
		CreatedAt: now.UTC(),
	}
	if p.FirstName == "" {
		return Person{}, errors.New("first_name is required")
	}
	if p.Email != "" {
		if _, err := mail.ParseAddress(p.Email); err != nil {
			return Person{}, errors.New("email is not a valid address")
		}
	}
	return p, nil
}
