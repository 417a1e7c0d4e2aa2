package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Sample is a stored face crop belonging to a subject.
type Sample struct {
	ID        string    `json:"id"`
	SubjectID string    `json:"subject_id"`
	ObjectKey string    `json:"object_key"`
	CreatedAt time.Time `json:"created_at"`
}

// SampleRepository provides CRUD operations for face samples.
type SampleRepository struct {
	s *Store
}

// Samples returns the sample repository for this store.
func (s *Store) Samples() *SampleRepository {
	return &SampleRepository{s: s}
}

// Create records a sample stored under objectKey.
func (r *SampleRepository) Create(ctx context.Context, subjectID, objectKey string) (*Sample, error) {
	sample := &Sample{
		ID:        uuid.New().String(),
		SubjectID: subjectID,
		ObjectKey: objectKey,
		CreatedAt: r.s.now(),
	}

	_, err := r.s.db.ExecContext(ctx,
		`INSERT INTO face_samples (id, subject_id, object_key, created_at) VALUES (?, ?, ?, ?)`,
		sample.ID, sample.SubjectID, sample.ObjectKey, sample.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sample, nil
}

// GetByID retrieves a single sample.
func (r *SampleRepository) GetByID(ctx context.Context, id string) (*Sample, error) {
	var sample Sample
	err := r.s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, object_key, created_at FROM face_samples WHERE id = ?`, id,
	).Scan(&sample.ID, &sample.SubjectID, &sample.ObjectKey, &sample.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sample, nil
}

// ListBySubject returns a subject's samples, oldest first.
func (r *SampleRepository) ListBySubject(ctx context.Context, subjectID string) ([]Sample, error) {
	return r.query(ctx,
		`SELECT id, subject_id, object_key, created_at
		 FROM face_samples WHERE subject_id = ? ORDER BY created_at, id`,
		subjectID,
	)
}

// List returns every sample grouped by subject.
func (r *SampleRepository) List(ctx context.Context) ([]Sample, error) {
	return r.query(ctx,
		`SELECT id, subject_id, object_key, created_at
		 FROM face_samples ORDER BY subject_id, created_at, id`,
	)
}

// Delete removes one sample.
func (r *SampleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.s.db.ExecContext(ctx, `DELETE FROM face_samples WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(result)
}

func (r *SampleRepository) query(ctx context.Context, query string, args ...any) ([]Sample, error) {
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var sample Sample
		if err := rows.Scan(&sample.ID, &sample.SubjectID, &sample.ObjectKey, &sample.CreatedAt); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}

	return samples, rows.Err()
}
