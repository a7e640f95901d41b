// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package ingest

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds carried by terminal failure events.
const (
	KindAuthorization       = "authorization"
	KindTransferInterrupted = "transfer_interrupted"
	KindOrphanedUpload      = "orphaned_upload"
	KindProcessingFailed    = "processing_failed"
	KindValidation          = "validation"
	KindInternal            = "internal"
)

// AuthorizationError means the caller may not upload. No bytes were moved.
type AuthorizationError struct {
	Op   string
	Role string
	Err  error
}

func (e *AuthorizationError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("ingest: %s: not authorized: %v", e.Op, e.Err)
	case e.Role != "":
		return fmt.Sprintf("ingest: %s: role %q may not upload", e.Op, e.Role)
	}
	return fmt.Sprintf("ingest: %s: not authorized", e.Op)
}

func (e *AuthorizationError) Unwrap() error { return e.Err }
func (*AuthorizationError) Kind() string    { return KindAuthorization }

// TransferInterruptedError means the binary transfer did not complete. The
// job does not exist yet; the transfer has to be restarted from zero.
type TransferInterruptedError struct {
	Sent   int64
	Size   int64
	Status int
	Err    error
}

func (e *TransferInterruptedError) Error() string {
	msg := fmt.Sprintf("ingest: transfer interrupted after %d/%d bytes", e.Sent, e.Size)
	if e.Status > 0 {
		msg = fmt.Sprintf("%s (HTTP %d)", msg, e.Status)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *TransferInterruptedError) Unwrap() error { return e.Err }
func (*TransferInterruptedError) Kind() string    { return KindTransferInterrupted }

// OrphanedUploadError means the object was stored but registration failed.
// ObjectKey identifies the stored bytes for reconciliation.
type OrphanedUploadError struct {
	ObjectKey string
	Err       error
}

func (e *OrphanedUploadError) Error() string {
	return fmt.Sprintf("ingest: object %s stored but job registration failed: %v", e.ObjectKey, e.Err)
}

func (e *OrphanedUploadError) Unwrap() error { return e.Err }
func (*OrphanedUploadError) Kind() string    { return KindOrphanedUpload }

// ProcessingFailedError is a terminal backend processing failure.
type ProcessingFailedError struct {
	MediaID string
	// Reason is the backend's machine-readable error kind, or "no_variants"
	// when a ready job resolves to nothing playable.
	Reason  string
	Message string
	Err     error
}

func (e *ProcessingFailedError) Error() string {
	msg := fmt.Sprintf("ingest: processing of %s failed", e.MediaID)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *ProcessingFailedError) Unwrap() error { return e.Err }
func (*ProcessingFailedError) Kind() string    { return KindProcessingFailed }

// ValidationError lists the invalid input fields and the rule each broke.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for f, rule := range e.Fields {
		parts = append(parts, f+"="+rule)
	}
	sort.Strings(parts)
	return "ingest: invalid input: " + strings.Join(parts, ", ")
}

func (*ValidationError) Kind() string { return KindValidation }

// KindOf classifies err for events, logs and metrics.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	var k interface{ Kind() string }
	if errors.As(err, &k) {
		return k.Kind()
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return KindInternal
}
