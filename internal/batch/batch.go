// Package batch holds the single global photo-ingestion toggle. When a
// batch is active, inbound admin photos are stored into the target
// chapter; when it is off they are discarded. The state survives
// restarts through the docstore.
package batch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"gallery-tg-bot/internal/docstore"
	apperrors "gallery-tg-bot/internal/errors"
	"gallery-tg-bot/internal/gallery"
)

const stateDoc = "batch_state"

// State is the persisted ingestion-mode record. Active implies Chapter
// is non-empty; when Active is false, Chapter is meaningless.
type State struct {
	Active  bool   `json:"batch_mode"`
	Chapter string `json:"batch_chapter,omitempty"`
}

// Store owns the batch state record.
type Store struct {
	docs     *docstore.Store
	chapters *gallery.Store
	logger   *slog.Logger

	// Serializes load-modify-save cycles across concurrent requests.
	mu sync.Mutex
}

// New creates a batch store. chapters is used to create the target
// chapter directory the moment a batch starts.
func New(docs *docstore.Store, chapters *gallery.Store, logger *slog.Logger) *Store {
	return &Store{docs: docs, chapters: chapters, logger: logger}
}

func (s *Store) load(ctx context.Context) (State, error) {
	body, err := s.docs.Load(ctx, stateDoc)
	if err != nil {
		return State{}, err
	}
	// No record yet means batch mode has never been turned on.
	if len(body) == 0 {
		return State{}, nil
	}
	var state State
	if err := json.Unmarshal(body, &state); err != nil {
		return State{}, fmt.Errorf("decode batch state: %w", err)
	}
	if !state.Active {
		state.Chapter = ""
	}
	return state, nil
}

func (s *Store) save(ctx context.Context, state State) error {
	body, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encode batch state: %w", err)
	}
	return s.docs.Save(ctx, stateDoc, body)
}

// StartBatch turns batch mode on, targeting the named chapter. Starting
// while a batch is already active re-targets it without ending the old
// one. The chapter directory is created if needed.
func (s *Store) StartBatch(ctx context.Context, chapter string) error {
	chapter = strings.TrimSpace(chapter)
	if chapter == "" {
		return apperrors.ErrEmptyChapter
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.chapters.Ensure(chapter); err != nil {
		return err
	}
	if err := s.save(ctx, State{Active: true, Chapter: chapter}); err != nil {
		return err
	}

	s.logger.Info("batch started", "chapter", chapter)
	return nil
}

// EndBatch turns batch mode off and reports whether it was actually on.
// Ending an idle batch is a no-op.
func (s *Store) EndBatch(ctx context.Context) (wasActive bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.load(ctx)
	if err != nil {
		return false, err
	}
	if !state.Active {
		return false, nil
	}
	if err := s.save(ctx, State{Active: false}); err != nil {
		return false, err
	}

	s.logger.Info("batch ended", "chapter", state.Chapter)
	return true, nil
}

// Current returns a read-only snapshot of the batch state.
func (s *Store) Current(ctx context.Context) (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx)
}
