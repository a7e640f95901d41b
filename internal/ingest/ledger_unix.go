// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build !windows

package ingest

import (
	"fmt"

	"github.com/google/renameio/v2"
)

// replaceFile writes data to a pending file, fsyncs it and renames it over path.
func replaceFile(path string, data []byte) error {
	if err := renameio.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("atomically replace orphan ledger: %w", err)
	}
	return nil
}
