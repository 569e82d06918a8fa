package file

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"inditrade/internal/logger"
	"inditrade/internal/store"
)

// EventStore is an append-only JSON-lines journal.
type EventStore struct {
	path string
	file *os.File
	mu   sync.Mutex
}

var _ store.EventStore = (*EventStore)(nil)

func NewEventStore(path string) (*EventStore, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open event journal: %w", err)
	}
	return &EventStore{path: path, file: f}, nil
}

func (s *EventStore) Append(_ context.Context, evt store.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return fmt.Errorf("event journal closed")
	}
	if _, err := s.file.Write(data); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	return nil
}

// List returns up to limit events, newest first. Undecodable lines are
// skipped with a warning.
func (s *EventStore) List(ctx context.Context, limit int) ([]store.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil, fmt.Errorf("event journal closed")
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to seek journal: %w", err)
	}

	var events []store.Event
	scanner := bufio.NewScanner(s.file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var evt store.Event
		if err := json.Unmarshal(line, &evt); err != nil {
			logger.Warnf("journal %s line %d skipped: %v", s.path, lineNum, err)
			continue
		}
		events = append(events, evt)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal scan: %w", err)
	}

	for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
		events[i], events[j] = events[j], events[i]
	}
	if limit > 0 && len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *EventStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
