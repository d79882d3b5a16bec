package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/dgallion1/fieldmap/internal/people"
)

// PersonStore implements people.Store using SQLite.
type PersonStore struct {
	db *DB
}

// NewPersonStore creates a new SQLite person store.
func NewPersonStore(db *DB) *PersonStore {
	return &PersonStore{db: db}
}

// Create stores a new person.
func (s *PersonStore) Create(ctx context.Context, p people.Person) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO people (id, first_name, last_name, email, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.FirstName, p.LastName, p.Email, p.CreatedAt)
	return err
}

// Get retrieves a person by ID.
func (s *PersonStore) Get(ctx context.Context, id string) (people.Person, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, first_name, last_name, email, created_at
		FROM people
		WHERE id = ?
	`, id)

	var p people.Person
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return people.Person{}, people.ErrNotFound
	}
	return p, err
}

// List returns people oldest first.
func (s *PersonStore) List(ctx context.Context, limit int) ([]people.Person, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, first_name, last_name, email, created_at
		FROM people
		ORDER BY created_at, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []people.Person
	for rows.Next() {
		var p people.Person
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Ensure interface compliance.
var _ people.Store = (*PersonStore)(nil)
