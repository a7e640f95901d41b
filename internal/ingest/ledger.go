// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// OrphanRecord is one stored object whose job was never registered.
type OrphanRecord struct {
	ObjectKey string    `json:"object_key"`
	Title     string    `json:"title"`
	CourseID  string    `json:"course_id"`
	Reason    string    `json:"reason"`
	At        time.Time `json:"at"`
}

// OrphanLedger is a JSON file listing orphaned uploads for operators. Each
// append rewrites the file atomically, so readers never see a torn ledger.
type OrphanLedger struct {
	path string
	mu   sync.Mutex
}

// NewOrphanLedger returns a ledger stored at path.
func NewOrphanLedger(path string) *OrphanLedger {
	return &OrphanLedger{path: path}
}

// Path returns the ledger file location.
func (l *OrphanLedger) Path() string { return l.path }

// Records reads the ledger. A missing file is an empty ledger.
func (l *OrphanLedger) Records() ([]OrphanRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

// Append adds rec and durably replaces the ledger file.
func (l *OrphanLedger) Append(rec OrphanRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return err
	}
	records = append(records, rec)
	blob, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode orphan ledger: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(l.path), 0o750); err != nil {
		return fmt.Errorf("create orphan ledger dir: %w", err)
	}
	return replaceFile(l.path, append(blob, '\n'))
}

func (l *OrphanLedger) read() ([]OrphanRecord, error) {
	blob, err := os.ReadFile(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read orphan ledger: %w", err)
	}
	var records []OrphanRecord
	if err := json.Unmarshal(blob, &records); err != nil {
		return nil, fmt.Errorf("decode orphan ledger %s: %w", l.path, err)
	}
	return records, nil
}
