// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package courseapi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
)

// Me returns the user behind cred.
func (c *Client) Me(ctx context.Context, cred Credential) (*User, error) {
	var u User
	err := c.do(ctx, cred, call{op: "me", method: http.MethodGet, route: "/me/", path: "/me/", out: &u})
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// PresignUpload requests a one-time upload destination.
func (c *Client) PresignUpload(ctx context.Context, cred Credential) (*UploadSlot, error) {
	var slot UploadSlot
	err := c.do(ctx, cred, call{
		op: "presign", method: http.MethodPost,
		route: "/admin-videos/presign/", path: "/admin-videos/presign/",
		body: struct{}{}, out: &slot,
	})
	if err != nil {
		return nil, err
	}
	if slot.UploadURL == "" || slot.Key == "" {
		return nil, &APIError{Sentinel: ErrBadResponse, Operation: "presign", Status: http.StatusOK, Message: "missing upload_url or key"}
	}
	return &slot, nil
}

// CreateVideo registers a processing job and returns its media ID.
func (c *Client) CreateVideo(ctx context.Context, cred Credential, req CreateVideoRequest) (ID, error) {
	var res createVideoResponse
	err := c.do(ctx, cred, call{
		op: "create_video", method: http.MethodPost,
		route: "/admin-videos/create/", path: "/admin-videos/create/",
		body: req, out: &res,
	})
	if err != nil {
		return "", err
	}
	if res.VideoID == "" {
		return "", &APIError{Sentinel: ErrBadResponse, Operation: "create_video", Status: http.StatusOK, Message: "missing video_id"}
	}
	return res.VideoID, nil
}

// VideoStatus queries the processing status of a media job.
func (c *Client) VideoStatus(ctx context.Context, cred Credential, mediaID ID) (*JobStatus, error) {
	var st JobStatus
	err := c.do(ctx, cred, call{
		op: "video_status", method: http.MethodGet,
		route: "/admin-videos/{id}/status/", path: fmt.Sprintf("/admin-videos/%s/status/", seg(mediaID)),
		out: &st,
	})
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// VideoSource resolves the playable stream locator for a course video.
func (c *Client) VideoSource(ctx context.Context, cred Credential, courseID, videoID ID) (string, error) {
	var res videoSourceResponse
	err := c.do(ctx, cred, call{
		op: "video_source", method: http.MethodGet,
		route: "/courses/{c}/videos/{v}/", path: fmt.Sprintf("/courses/%s/videos/%s/", seg(courseID), seg(videoID)),
		out: &res,
	})
	if err != nil {
		return "", err
	}
	if res.VideoURL == "" {
		return "", &APIError{Sentinel: ErrBadResponse, Operation: "video_source", Status: http.StatusOK, Message: "missing video_url"}
	}
	return res.VideoURL, nil
}

// GetCheckpoint fetches the viewer's checkpoint. A viewer without one gets a
// zero Checkpoint, not an error.
func (c *Client) GetCheckpoint(ctx context.Context, cred Credential, courseID, videoID ID) (*Checkpoint, error) {
	var cp Checkpoint
	err := c.do(ctx, cred, call{
		op: "get_checkpoint", method: http.MethodGet,
		route: "/courses/{c}/videos/{v}/progress/", path: progressPath(courseID, videoID),
		out: &cp,
	})
	if errors.Is(err, ErrNotFound) {
		return &Checkpoint{}, nil
	}
	if err != nil {
		return nil, err
	}
	return &cp, nil
}

// PutCheckpoint persists the position in whole seconds.
func (c *Client) PutCheckpoint(ctx context.Context, cred Credential, courseID, videoID ID, seconds float64) error {
	return c.do(ctx, cred, call{
		op: "put_checkpoint", method: http.MethodPost,
		route: "/courses/{c}/videos/{v}/progress/", path: progressPath(courseID, videoID),
		body: checkpointRequest{CurrentTime: int64(math.Floor(seconds))},
	})
}

func progressPath(courseID, videoID ID) string {
	return fmt.Sprintf("/courses/%s/videos/%s/progress/", seg(courseID), seg(videoID))
}

// ModuleProgress lists the viewer's module records for a course.
func (c *Client) ModuleProgress(ctx context.Context, cred Credential, courseID ID) (*ModuleProgress, error) {
	var mp ModuleProgress
	err := c.do(ctx, cred, call{
		op: "module_progress", method: http.MethodGet,
		route: "/courses/{c}/module-progress/", path: fmt.Sprintf("/courses/%s/module-progress/", seg(courseID)),
		out: &mp,
	})
	if err != nil {
		return nil, err
	}
	return &mp, nil
}

// GetTest loads a test and the viewer's attempt state.
func (c *Client) GetTest(ctx context.Context, cred Credential, courseID, testID ID) (*TestDetail, error) {
	var td TestDetail
	err := c.do(ctx, cred, call{
		op: "get_test", method: http.MethodGet,
		route: "/courses/{c}/tests/{t}/", path: fmt.Sprintf("/courses/%s/tests/%s/", seg(courseID), seg(testID)),
		out: &td,
	})
	if err != nil {
		return nil, err
	}
	return &td, nil
}

// SubmitTest submits answers keyed by question ID. The backend accepts one
// submission per viewer and test; a second one is rejected.
func (c *Client) SubmitTest(ctx context.Context, cred Credential, courseID, testID ID, answers map[string]string) (*SubmitResult, error) {
	var res SubmitResult
	err := c.do(ctx, cred, call{
		op: "submit_test", method: http.MethodPost,
		route: "/courses/{c}/tests/{t}/submit/", path: fmt.Sprintf("/courses/%s/tests/%s/submit/", seg(courseID), seg(testID)),
		body: submitTestRequest{Answers: answers}, out: &res,
	})
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// TestHistory lists the viewer's submitted attempts in a course.
func (c *Client) TestHistory(ctx context.Context, cred Credential, courseID ID) ([]AttemptSummary, error) {
	var list []AttemptSummary
	err := c.do(ctx, cred, call{
		op: "test_history", method: http.MethodGet,
		route: "/courses/{c}/tests/history/", path: fmt.Sprintf("/courses/%s/tests/history/", seg(courseID)),
		out: &list,
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

// TestHistoryDetail returns the answer-level review of one attempt.
func (c *Client) TestHistoryDetail(ctx context.Context, cred Credential, courseID, attemptID ID) (*AttemptDetail, error) {
	var d AttemptDetail
	err := c.do(ctx, cred, call{
		op: "test_history_detail", method: http.MethodGet,
		route: "/courses/{c}/tests/history/{a}/", path: fmt.Sprintf("/courses/%s/tests/history/%s/", seg(courseID), seg(attemptID)),
		out: &d,
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ExternalWorkStatus returns the recorded external-work link, or "" if none.
func (c *Client) ExternalWorkStatus(ctx context.Context, cred Credential, courseID ID) (string, error) {
	var body externalWorkBody
	err := c.do(ctx, cred, call{
		op: "external_work_status", method: http.MethodGet,
		route: "/certificate/github-link/{c}/", path: externalWorkPath(courseID),
		out: &body,
	})
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return body.GithubLink, nil
}

// SubmitExternalWork records the external-work link. One per course and viewer.
func (c *Client) SubmitExternalWork(ctx context.Context, cred Credential, courseID ID, link string) error {
	return c.do(ctx, cred, call{
		op: "submit_external_work", method: http.MethodPost,
		route: "/certificate/github-link/{c}/", path: externalWorkPath(courseID),
		body: externalWorkBody{GithubLink: link},
	})
}

func externalWorkPath(courseID ID) string {
	return fmt.Sprintf("/certificate/github-link/%s/", seg(courseID))
}

// RequestCertificate asks the backend to issue and send the certificate.
func (c *Client) RequestCertificate(ctx context.Context, cred Credential, courseID ID) (string, error) {
	var res messageResponse
	err := c.do(ctx, cred, call{
		op: "request_certificate", method: http.MethodPost,
		route: "/certificate/send/{c}/", path: fmt.Sprintf("/certificate/send/%s/", seg(courseID)),
		body: struct{}{}, out: &res,
	})
	if err != nil {
		return "", err
	}
	return res.Message, nil
}
