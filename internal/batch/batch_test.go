package batch

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gallery-tg-bot/internal/docstore"
	apperrors "gallery-tg-bot/internal/errors"
	"gallery-tg-bot/internal/gallery"
)

func newTestStore(t *testing.T) (*Store, *gallery.Store) {
	t.Helper()
	dir := t.TempDir()
	docs, err := docstore.Open(filepath.Join(dir, "gallery.db"))
	require.NoError(t, err)
	t.Cleanup(func() { docs.Close() })

	chapters, err := gallery.NewStore(filepath.Join(dir, "uploads"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	return New(docs, chapters, slog.New(slog.DiscardHandler)), chapters
}

func TestDefaultStateIsIdle(t *testing.T) {
	s, _ := newTestStore(t)

	state, err := s.Current(context.Background())
	require.NoError(t, err)
	assert.False(t, state.Active)
	assert.Empty(t, state.Chapter)
}

func TestStartBatchCreatesChapter(t *testing.T) {
	s, chapters := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StartBatch(ctx, "ch1"))

	state, err := s.Current(ctx)
	require.NoError(t, err)
	assert.True(t, state.Active)
	assert.Equal(t, "ch1", state.Chapter)

	names, err := chapters.Chapters()
	require.NoError(t, err)
	assert.Equal(t, []string{"ch1"}, names)
}

func TestStartBatchTrimsAndRejectsEmpty(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.StartBatch(ctx, ""), apperrors.ErrEmptyChapter)
	assert.ErrorIs(t, s.StartBatch(ctx, "   "), apperrors.ErrEmptyChapter)

	require.NoError(t, s.StartBatch(ctx, "  ch1  "))
	state, err := s.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ch1", state.Chapter)
}

func TestStartBatchRetargets(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.StartBatch(ctx, "ch1"))
	require.NoError(t, s.StartBatch(ctx, "ch2"))

	state, err := s.Current(ctx)
	require.NoError(t, err)
	assert.True(t, state.Active)
	assert.Equal(t, "ch2", state.Chapter)
}

func TestEndBatch(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	// Ending while idle reports that nothing was active.
	wasActive, err := s.EndBatch(ctx)
	require.NoError(t, err)
	assert.False(t, wasActive)

	require.NoError(t, s.StartBatch(ctx, "ch1"))
	wasActive, err = s.EndBatch(ctx)
	require.NoError(t, err)
	assert.True(t, wasActive)

	state, err := s.Current(ctx)
	require.NoError(t, err)
	assert.False(t, state.Active)
	assert.Empty(t, state.Chapter)
}

// The invariant Active == (Chapter != "") must hold after any sequence
// of transitions.
func TestStateInvariantAcrossSequences(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	steps := []func() error{
		func() error { return s.StartBatch(ctx, "a") },
		func() error { _, err := s.EndBatch(ctx); return err },
		func() error { _, err := s.EndBatch(ctx); return err },
		func() error { return s.StartBatch(ctx, "b") },
		func() error { return s.StartBatch(ctx, "c") },
		func() error { _, err := s.EndBatch(ctx); return err },
	}
	for i, step := range steps {
		require.NoError(t, step())
		state, err := s.Current(ctx)
		require.NoError(t, err)
		assert.Equal(t, state.Active, state.Chapter != "", "after step %d", i)
	}
}

func TestStatePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	chapters, err := gallery.NewStore(filepath.Join(dir, "uploads"), logger)
	require.NoError(t, err)

	docs, err := docstore.Open(filepath.Join(dir, "gallery.db"))
	require.NoError(t, err)
	s := New(docs, chapters, logger)
	require.NoError(t, s.StartBatch(ctx, "ch1"))
	require.NoError(t, docs.Close())

	docs, err = docstore.Open(filepath.Join(dir, "gallery.db"))
	require.NoError(t, err)
	defer docs.Close()
	s = New(docs, chapters, logger)

	state, err := s.Current(ctx)
	require.NoError(t, err)
	assert.True(t, state.Active)
	assert.Equal(t, "ch1", state.Chapter)
}
