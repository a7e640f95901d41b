// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package log

// Canonical field name constants for structured logging.
const (
	// Identity fields
	FieldService       = "service"
	FieldComponent     = "component"
	FieldCorrelationID = "correlation_id"
	FieldViewerID      = "viewer_id"
	FieldCourseID      = "course_id"
	FieldModuleID      = "module_id"
	FieldMediaID       = "media_id"
	FieldTestID        = "test_id"
	FieldSessionID     = "session_id"

	// Pipeline fields
	FieldEvent     = "event"
	FieldPhase     = "phase"
	FieldProgress  = "progress"
	FieldErrorKind = "error_kind"
	FieldObjectKey = "object_key"
	FieldAttempt   = "attempt"

	// Playback fields
	FieldPosition = "position_s"
	FieldDuration = "duration_s"
	FieldQuality  = "quality"

	// State fields
	FieldOldState = "old_state"
	FieldNewState = "new_state"

	// HTTP fields
	FieldMethod = "method"
	FieldRoute  = "route"
	FieldStatus = "status"
)
