package store

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// ErrDuplicate is returned when a subject with the same ID already exists.
var ErrDuplicate = errors.New("already exists")

// Subject is an enrolled person.
type Subject struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Department string    `json:"department"`
	Year       string    `json:"year"`
	Email      string    `json:"email"`
	Contact    string    `json:"contact"`
	PhotoPath  string    `json:"photo_path"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubjectRepository provides CRUD operations for subjects.
type SubjectRepository struct {
	s *Store
}

// Subjects returns the subject repository for this store.
func (s *Store) Subjects() *SubjectRepository {
	return &SubjectRepository{s: s}
}

// Create inserts a new subject.
func (r *SubjectRepository) Create(ctx context.Context, sub *Subject) error {
	if _, err := r.GetByID(ctx, sub.ID); err == nil {
		return ErrDuplicate
	} else if !errors.Is(err, ErrNotFound) {
		return err
	}

	sub.CreatedAt = r.s.now()
	_, err := r.s.db.ExecContext(ctx,
		`INSERT INTO subjects (id, name, department, year, email, contact, photo_path, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.Name, sub.Department, sub.Year, sub.Email, sub.Contact, sub.PhotoPath, sub.CreatedAt,
	)
	return err
}

// GetByID retrieves a subject by register number.
func (r *SubjectRepository) GetByID(ctx context.Context, id string) (*Subject, error) {
	sub := &Subject{}
	err := r.s.db.QueryRowContext(ctx,
		`SELECT id, name, department, year, email, contact, photo_path, created_at
		 FROM subjects WHERE id = ?`,
		id,
	).Scan(&sub.ID, &sub.Name, &sub.Department, &sub.Year, &sub.Email, &sub.Contact, &sub.PhotoPath, &sub.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return sub, nil
}

// List returns all subjects ordered by ID.
func (r *SubjectRepository) List(ctx context.Context) ([]Subject, error) {
	rows, err := r.s.db.QueryContext(ctx,
		`SELECT id, name, department, year, email, contact, photo_path, created_at
		 FROM subjects ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.ID, &sub.Name, &sub.Department, &sub.Year, &sub.Email, &sub.Contact, &sub.PhotoPath, &sub.CreatedAt); err != nil {
			return nil, err
		}
		subjects = append(subjects, sub)
	}

	return subjects, rows.Err()
}

// Update modifies an existing subject's profile.
func (r *SubjectRepository) Update(ctx context.Context, sub *Subject) error {
	result, err := r.s.db.ExecContext(ctx,
		`UPDATE subjects SET name = ?, department = ?, year = ?, email = ?, contact = ?, photo_path = ?
		 WHERE id = ?`,
		sub.Name, sub.Department, sub.Year, sub.Email, sub.Contact, sub.PhotoPath, sub.ID,
	)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

// Delete removes a subject along with its samples and attendance.
func (r *SubjectRepository) Delete(ctx context.Context, id string) error {
	result, err := r.s.db.ExecContext(ctx, `DELETE FROM subjects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
