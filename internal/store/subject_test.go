package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubjectRepository_CRUD(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	repo := s.Subjects()

	sub := &Subject{ID: "21CS001", Name: "Asha Rao", Department: "CSE", Year: "3"}
	require.NoError(t, repo.Create(ctx, sub))
	assert.False(t, sub.CreatedAt.IsZero())

	assert.ErrorIs(t, repo.Create(ctx, &Subject{ID: "21CS001", Name: "dup"}), ErrDuplicate)

	got, err := repo.GetByID(ctx, "21CS001")
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", got.Name)
	assert.Equal(t, "CSE", got.Department)

	got.Email = "asha@example.edu"
	require.NoError(t, repo.Update(ctx, got))

	got, err = repo.GetByID(ctx, "21CS001")
	require.NoError(t, err)
	assert.Equal(t, "asha@example.edu", got.Email)

	require.NoError(t, repo.Create(ctx, &Subject{ID: "21CS002", Name: "Vikram"}))
	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "21CS001", list[0].ID)

	require.NoError(t, repo.Delete(ctx, "21CS001"))
	_, err = repo.GetByID(ctx, "21CS001")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, "missing"), ErrNotFound)
	assert.ErrorIs(t, repo.Update(ctx, &Subject{ID: "missing"}), ErrNotFound)
}

func TestSampleRepository(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Subjects().Create(ctx, &Subject{ID: "S1", Name: "Alice"}))
	require.NoError(t, s.Subjects().Create(ctx, &Subject{ID: "S2", Name: "Bob"}))

	repo := s.Samples()
	a, err := repo.Create(ctx, "S1", "S1/a.jpg")
	require.NoError(t, err)
	assert.Len(t, a.ID, 36)

	_, err = repo.Create(ctx, "S1", "S1/b.jpg")
	require.NoError(t, err)
	_, err = repo.Create(ctx, "S2", "S2/a.jpg")
	require.NoError(t, err)

	// Unknown subject violates the foreign key
	_, err = repo.Create(ctx, "ghost", "ghost/a.jpg")
	assert.Error(t, err)

	forS1, err := repo.ListBySubject(ctx, "S1")
	require.NoError(t, err)
	assert.Len(t, forS1, 2)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	got, err := repo.GetByID(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "S1/a.jpg", got.ObjectKey)

	// Deleting a subject cascades to its samples
	require.NoError(t, s.Subjects().Delete(ctx, "S1"))
	all, err = repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	assert.ErrorIs(t, repo.Delete(ctx, a.ID), ErrNotFound)
}
