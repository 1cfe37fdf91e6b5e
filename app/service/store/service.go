package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"procscribe/app/config"
	"procscribe/app/domain/chat"
	"procscribe/app/domain/process"

	"github.com/google/uuid"
	"github.com/samber/do"
	"github.com/samber/oops"
)

var (
	ErrNotFound   = errors.New("conversation not found")
	ErrStaleState = errors.New("conversation was modified concurrently")
	ErrInvalidID  = errors.New("invalid conversation id")
)

type Kind string

const (
	KindProtocol Kind = "protocol"
	KindProcess  Kind = "process"
)

// Conversation is everything persisted between turns.
type Conversation struct {
	ID        string         `json:"id"`
	Kind      Kind           `json:"kind"`
	Messages  []chat.Message `json:"messages"`
	Document  string         `json:"document"`
	Diagram   string         `json:"diagram,omitempty"`
	State     *process.State `json:"state"`
	Version   int64          `json:"version"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Service keeps one JSON file per conversation. Writes use optimistic concurrency: the caller
// saves the version it read and a mismatch is rejected with ErrStaleState.
type Service struct {
	dir string
	mu  sync.RWMutex
}

func New(di *do.Injector) (*Service, error) {
	cfg := do.MustInvoke[*config.Config](di)
	return NewService(cfg.Store.Dir)
}

func NewService(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, oops.In("store").With("dir", dir).Wrapf(err, "failed to create store directory")
	}

	return &Service{dir: dir}, nil
}

// Create stores a new empty conversation of the given kind.
func (s *Service) Create(kind Kind) (*Conversation, error) {
	if kind == "" {
		kind = KindProtocol
	}

	return s.Save(&Conversation{
		ID:    uuid.NewString(),
		Kind:  kind,
		State: &process.State{},
	})
}

func (s *Service) Get(id string) (*Conversation, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, err := load(path)
	if errors.Is(err, ErrNotFound) {
		return nil, oops.In("store").Code("not_found").With("id", id).Wrap(err)
	}

	return conv, err
}

// Save writes conv if its version matches the stored one (zero for a new conversation) and
// returns the stored copy with the next version.
func (s *Service) Save(conv *Conversation) (*Conversation, error) {
	path, err := s.path(conv.ID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current int64
	existing, err := load(path)
	switch {
	case err == nil:
		current = existing.Version
	case errors.Is(err, ErrNotFound):
	default:
		return nil, err
	}

	if conv.Version != current {
		return nil, oops.
			In("store").
			Code("stale_state").
			With("id", conv.ID).
			With("expected", current).
			With("actual", conv.Version).
			Wrap(ErrStaleState)
	}

	next := *conv
	next.Version = current + 1
	next.UpdatedAt = time.Now().UTC()
	if next.State == nil {
		next.State = &process.State{}
	}
	next.State = process.Clone(next.State)
	next.State.Version = next.Version

	if err = write(path, &next); err != nil {
		return nil, err
	}

	slog.Debug("Saved conversation",
		"id", next.ID,
		"version", next.Version,
	)

	return &next, nil
}

func (s *Service) Delete(id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err = os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return oops.In("store").Code("not_found").With("id", id).Wrap(ErrNotFound)
		}
		return oops.In("store").With("id", id).Wrapf(err, "failed to delete conversation")
	}

	return nil
}

func (s *Service) path(id string) (string, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", oops.In("store").Code("invalid_id").With("id", id).Wrap(ErrInvalidID)
	}

	return filepath.Join(s.dir, id+".json"), nil
}

func load(path string) (*Conversation, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read conversation file: %w", err)
	}

	var conv Conversation
	if err = json.Unmarshal(data, &conv); err != nil {
		return nil, fmt.Errorf("failed to parse conversation file: %w", err)
	}

	return &conv, nil
}

// write replaces the file atomically so readers never see a partial conversation.
func write(path string, conv *Conversation) error {
	data, err := json.MarshalIndent(conv, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal conversation: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".conversation-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write conversation: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace conversation file: %w", err)
	}

	return nil
}
