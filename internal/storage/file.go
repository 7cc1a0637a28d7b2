package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"burnscope/internal/model"
)

// FileCursorStore persists cursors as JSON files, one per topic, written
// atomically via tmp+rename. Keeps progress durable without a database.
type FileCursorStore struct {
	dir string
}

func NewFileCursorStore(dir string) *FileCursorStore {
	return &FileCursorStore{dir: dir}
}

type cursorRecord struct {
	Cursor    model.Cursor `json:"cursor"`
	UpdatedAt string       `json:"updated_at"`
}

func (s *FileCursorStore) Load(ctx context.Context, topic string) (model.Cursor, bool, error) {
	data, err := os.ReadFile(s.path(topic))
	if err != nil {
		if os.IsNotExist(err) {
			return model.Cursor{}, false, nil
		}
		return model.Cursor{}, false, fmt.Errorf("read cursor: %w", err)
	}

	var rec cursorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.Cursor{}, false, fmt.Errorf("parse cursor: %w", err)
	}
	return rec.Cursor, true, nil
}

func (s *FileCursorStore) Save(ctx context.Context, topic string, cursor model.Cursor) error {
	if s.dir != "." && s.dir != "" {
		if err := os.MkdirAll(s.dir, 0o755); err != nil {
			return fmt.Errorf("create cursor dir: %w", err)
		}
	}

	rec := cursorRecord{
		Cursor:    cursor,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339Nano),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	path := s.path(topic)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write cursor tmp: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename cursor: %w", err)
	}
	return nil
}

func (s *FileCursorStore) path(topic string) string {
	return filepath.Join(s.dir, topic+".cursor.json")
}
