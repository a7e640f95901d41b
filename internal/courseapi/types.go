// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package courseapi

import "time"

// User is the identity behind a credential.
type User struct {
	ID    ID     `json:"id"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// UploadSlot is a one-time presigned destination for a single binary transfer.
type UploadSlot struct {
	UploadURL string `json:"upload_url"`
	Key       string `json:"key"`
}

// CreateVideoRequest registers a processing job for an uploaded object.
type CreateVideoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Course      ID     `json:"course"`
	Module      ID     `json:"module,omitempty"`
	R2Key       string `json:"r2_key"`
}

type createVideoResponse struct {
	VideoID ID `json:"video_id"`
}

// JobStatus is one answer of the processing status endpoint.
type JobStatus struct {
	Status    string  `json:"status"`
	Stage     string  `json:"stage"`
	Progress  float64 `json:"progress"`
	VideoURL  string  `json:"video_url,omitempty"`
	ErrorKind string  `json:"error_kind,omitempty"`
	Error     string  `json:"error,omitempty"`
}

type videoSourceResponse struct {
	VideoURL string `json:"video_url"`
}

// Checkpoint is the server's resume record for one viewer and video.
type Checkpoint struct {
	LastPosition float64    `json:"last_position"`
	Duration     float64    `json:"duration,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

type checkpointRequest struct {
	CurrentTime int64 `json:"current_time"`
}

// ModuleRecord is one entry of the module progress listing.
type ModuleRecord struct {
	ID          ID     `json:"id"`
	Title       string `json:"title"`
	Order       int    `json:"order"`
	ItemType    string `json:"item_type"`
	ItemID      ID     `json:"item_id"`
	IsUnlocked  bool   `json:"is_unlocked"`
	IsCompleted bool   `json:"is_completed"`
	// Attempted is only present for test modules.
	Attempted *bool `json:"attempted,omitempty"`
}

// ModuleProgress is the module progress listing for one viewer and course.
type ModuleProgress struct {
	Modules    []ModuleRecord `json:"modules"`
	GithubLink string         `json:"github_link,omitempty"`
}

// Question is a single-choice question with options A-D.
type Question struct {
	ID      ID     `json:"id"`
	Text    string `json:"text"`
	OptionA string `json:"option_a"`
	OptionB string `json:"option_b"`
	OptionC string `json:"option_c"`
	OptionD string `json:"option_d"`
}

// Test is the question sheet of a test module.
type Test struct {
	ID          ID         `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// TestDetail is a test together with the viewer's attempt state.
type TestDetail struct {
	Attempted  bool     `json:"attempted"`
	Score      *float64 `json:"score"`
	TotalMarks *float64 `json:"total_marks"`
	Test       *Test    `json:"test"`
}

type submitTestRequest struct {
	Answers map[string]string `json:"answers"`
}

// SubmitResult is whatever the backend echoes after a submission.
type SubmitResult struct {
	Message    string   `json:"message,omitempty"`
	Score      *float64 `json:"score,omitempty"`
	TotalMarks *float64 `json:"total_marks,omitempty"`
}

// AttemptSummary is one entry of the test history listing.
type AttemptSummary struct {
	ID          ID        `json:"id"`
	TestID      ID        `json:"test_id"`
	TestName    string    `json:"test_name"`
	Score       float64   `json:"score"`
	TotalMarks  float64   `json:"total_marks"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// AnswerReview is the per-question outcome of a submitted attempt.
type AnswerReview struct {
	Question       string `json:"question"`
	SelectedAnswer string `json:"selected_answer"`
	CorrectAnswer  string `json:"correct_answer"`
	IsCorrect      bool   `json:"is_correct"`
}

// AttemptDetail is the answer-level review of one attempt.
type AttemptDetail struct {
	ID         ID             `json:"id"`
	TestID     ID             `json:"test_id"`
	TestName   string         `json:"test_name"`
	Score      float64        `json:"score"`
	TotalMarks float64        `json:"total_marks"`
	Answers    []AnswerReview `json:"answers"`
}

type externalWorkBody struct {
	GithubLink string `json:"github_link"`
}

type messageResponse struct {
	Message string `json:"message"`
}
