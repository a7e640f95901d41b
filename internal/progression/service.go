// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progression

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/courseflow/internal/cache"
	"github.com/ManuGH/courseflow/internal/courseapi"
	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/ManuGH/courseflow/internal/metrics"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Backend is the slice of the course API the service needs.
type Backend interface {
	ModuleProgress(ctx context.Context, cred courseapi.Credential, courseID courseapi.ID) (*courseapi.ModuleProgress, error)
	ExternalWorkStatus(ctx context.Context, cred courseapi.Credential, courseID courseapi.ID) (string, error)
	GetTest(ctx context.Context, cred courseapi.Credential, courseID, testID courseapi.ID) (*courseapi.TestDetail, error)
	SubmitTest(ctx context.Context, cred courseapi.Credential, courseID, testID courseapi.ID, answers map[string]string) (*courseapi.SubmitResult, error)
	TestHistory(ctx context.Context, cred courseapi.Credential, courseID courseapi.ID) ([]courseapi.AttemptSummary, error)
	TestHistoryDetail(ctx context.Context, cred courseapi.Credential, courseID, attemptID courseapi.ID) (*courseapi.AttemptDetail, error)
	SubmitExternalWork(ctx context.Context, cred courseapi.Credential, courseID courseapi.ID, link string) error
	RequestCertificate(ctx context.Context, cred courseapi.Credential, courseID courseapi.ID) (string, error)
}

// Scope identifies whose progress in which course an operation concerns.
type Scope struct {
	Credential courseapi.Credential `validate:"-"`
	ViewerID   string               `validate:"required"`
	CourseID   courseapi.ID         `validate:"required"`
}

func (s Scope) logScope() xlog.Scope {
	return xlog.Scope{ViewerID: s.ViewerID, CourseID: string(s.CourseID)}
}

func (s Scope) key() string {
	return "progress:" + s.ViewerID + ":" + string(s.CourseID)
}

// Config tunes the service.
type Config struct {
	// CacheTTL bounds how long a cached listing is served without a refresh.
	CacheTTL time.Duration
	// RegressionRefetches is how often a listing that moved backward is
	// refetched before it is accepted. Zero means the default of one;
	// negative disables refetching.
	RegressionRefetches int
}

const defaultCacheTTL = 30 * time.Second

func (c Config) withDefaults() Config {
	if c.CacheTTL <= 0 {
		c.CacheTTL = defaultCacheTTL
	}
	switch {
	case c.RegressionRefetches == 0:
		c.RegressionRefetches = 1
	case c.RegressionRefetches < 0:
		c.RegressionRefetches = 0
	}
	return c
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// snapshot is what gets cached: the raw server listing, not the derived view.
type snapshot struct {
	Modules      []courseapi.ModuleRecord `json:"modules"`
	ExternalWork string                   `json:"external_work,omitempty"`
	FetchedAt    time.Time                `json:"fetched_at"`
}

// Service serves course views for many viewers. Views it returns share maps
// between concurrent callers and must be treated as read-only.
type Service struct {
	backend Backend
	cache   cache.Cache
	cfg     Config
	group   singleflight.Group
	logger  zerolog.Logger

	mu       sync.Mutex
	last     map[string]View
	attempts map[string]map[courseapi.ID]TestAttempt
	// external marks scopes whose final project link this service submitted.
	external map[string]bool
}

// NewService creates a service. A nil cache disables caching.
func NewService(backend Backend, c cache.Cache, cfg Config) *Service {
	if c == nil {
		c = cache.NewNoOpCache()
	}
	return &Service{
		backend:  backend,
		cache:    c,
		cfg:      cfg.withDefaults(),
		logger:   xlog.WithComponent("progression"),
		last:     make(map[string]View),
		attempts: make(map[string]map[courseapi.ID]TestAttempt),
		external: make(map[string]bool),
	}
}

func checkScope(scope Scope) error {
	if !scope.Credential.Valid() {
		return courseapi.ErrNoCredential
	}
	if err := validate.Struct(scope); err != nil {
		return fmt.Errorf("progression: invalid scope: %w", err)
	}
	return nil
}

// View returns the course view, served from cache when fresh.
func (s *Service) View(ctx context.Context, scope Scope) (View, error) {
	if err := checkScope(scope); err != nil {
		return View{}, err
	}
	key := scope.key()
	if raw, ok := s.cache.Get(ctx, key); ok {
		var snap snapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			metrics.RecordProgressionRefresh("cache")
			return ComputeView(snap.Modules, s.courseContext(key, snap)), nil
		}
		s.cache.Delete(ctx, key)
	}
	return s.Refresh(ctx, scope)
}

// Refresh fetches the listing from the backend and replaces the cached one.
// Concurrent refreshes of the same scope share one backend round.
func (s *Service) Refresh(ctx context.Context, scope Scope) (View, error) {
	if err := checkScope(scope); err != nil {
		return View{}, err
	}
	key := scope.key()
	res, err, shared := s.group.Do(key, func() (any, error) {
		return s.refresh(ctx, scope, key)
	})
	if err != nil {
		return View{}, err
	}
	if shared {
		metrics.RecordProgressionRefresh("shared")
	}
	return res.(View), nil
}

// Invalidate drops the cached listing so the next View refetches it.
func (s *Service) Invalidate(ctx context.Context, scope Scope) {
	s.cache.Delete(ctx, scope.key())
}

func (s *Service) refresh(ctx context.Context, scope Scope, key string) (View, error) {
	logger := xlog.WithContext(xlog.WithScope(ctx, scope.logScope()), s.logger)

	s.mu.Lock()
	prev, hasPrev := s.last[key]
	s.mu.Unlock()

	var (
		snap snapshot
		view View
	)
	for attempt := 0; ; attempt++ {
		var err error
		snap, err = s.load(ctx, scope)
		if err != nil {
			return View{}, err
		}
		metrics.RecordProgressionRefresh("backend")
		view = ComputeView(snap.Modules, s.courseContext(key, snap))
		if !hasPrev {
			break
		}
		regressions := Observe(prev, view)
		if len(regressions) == 0 {
			break
		}
		if attempt >= s.cfg.RegressionRefetches {
			for _, a := range regressions {
				metrics.RecordProgressionAnomaly(string(a.Kind))
				logger.Warn().
					Str(xlog.FieldEvent, "progression.regression_accepted").
					Str(xlog.FieldModuleID, string(a.ModuleID)).
					Str(xlog.FieldOldState, string(a.From)).
					Str(xlog.FieldNewState, string(a.To)).
					Msg("module state moved backward")
			}
			view.Anomalies = append(view.Anomalies, regressions...)
			break
		}
		logger.Debug().
			Str(xlog.FieldEvent, "progression.regression_refetch").
			Int(xlog.FieldAttempt, attempt+1).
			Msg("listing regressed, refetching")
	}

	for _, a := range view.Anomalies {
		if a.Kind == AnomalyRegression {
			continue
		}
		metrics.RecordProgressionAnomaly(string(a.Kind))
		logger.Warn().
			Str(xlog.FieldEvent, "progression.anomaly").
			Str(xlog.FieldErrorKind, string(a.Kind)).
			Str(xlog.FieldModuleID, string(a.ModuleID)).
			Int("order", a.Order).
			Msg("inconsistent module progress")
	}

	s.mu.Lock()
	s.last[key] = view
	s.mu.Unlock()

	if raw, err := json.Marshal(snap); err == nil {
		s.cache.Set(ctx, key, raw, s.cfg.CacheTTL)
	}
	return view, nil
}

func (s *Service) load(ctx context.Context, scope Scope) (snapshot, error) {
	mp, err := s.backend.ModuleProgress(ctx, scope.Credential, scope.CourseID)
	if err != nil {
		return snapshot{}, err
	}
	snap := snapshot{Modules: mp.Modules, ExternalWork: mp.GithubLink, FetchedAt: time.Now().UTC()}
	if snap.ExternalWork == "" {
		link, err := s.backend.ExternalWorkStatus(ctx, scope.Credential, scope.CourseID)
		if err != nil {
			return snapshot{}, err
		}
		snap.ExternalWork = link
	}
	return snap, nil
}

func (s *Service) courseContext(key string, snap snapshot) CourseContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	var attempts map[courseapi.ID]TestAttempt
	if known := s.attempts[key]; len(known) > 0 {
		attempts = make(map[courseapi.ID]TestAttempt, len(known))
		for id, a := range known {
			attempts[id] = a
		}
	}
	return CourseContext{Attempts: attempts, ExternalWorkRecorded: snap.ExternalWork != "" || s.external[key]}
}

func (s *Service) recordAttempt(key string, testID courseapi.ID, score *float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attempts[key] == nil {
		s.attempts[key] = make(map[courseapi.ID]TestAttempt)
	}
	s.attempts[key][testID] = TestAttempt{Attempted: true, Score: score}
}

func (s *Service) recordExternalWork(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.external[key] = true
}

// gateTest checks that testID belongs to the course and may be started.
func (s *Service) gateTest(ctx context.Context, scope Scope, kind ActionKind, testID courseapi.ID) error {
	view, err := s.View(ctx, scope)
	if err != nil {
		return err
	}
	m, ok := view.TestModule(testID)
	if !ok {
		metrics.RecordGatedAction(string(kind), false)
		return &ActionDisabledError{Action: kind, Reason: fmt.Sprintf("test %s is not part of course %s", testID, scope.CourseID)}
	}
	a := view.Actions[m.ID]
	metrics.RecordGatedAction(string(kind), a.Enabled)
	if !a.Enabled {
		return &ActionDisabledError{Action: kind, ModuleID: m.ID, Reason: a.Reason}
	}
	return nil
}

// StartTest loads a test the viewer has not attempted yet.
func (s *Service) StartTest(ctx context.Context, scope Scope, testID courseapi.ID) (*courseapi.TestDetail, error) {
	if err := s.gateTest(ctx, scope, ActionStartTest, testID); err != nil {
		return nil, err
	}
	detail, err := s.backend.GetTest(ctx, scope.Credential, scope.CourseID, testID)
	if err != nil {
		return nil, err
	}
	if detail.Attempted {
		s.recordAttempt(scope.key(), testID, detail.Score)
		s.Invalidate(ctx, scope)
		return nil, &ActionDisabledError{Action: ActionStartTest, Reason: ReasonAttempted}
	}
	return detail, nil
}

// SubmitOutcome is a submission together with its review.
type SubmitOutcome struct {
	Result *courseapi.SubmitResult
	// Latest is the answer-level review of the submission. It is nil when the
	// history could not be read; the submission itself still stands.
	Latest  *courseapi.AttemptDetail
	History []courseapi.AttemptSummary
}

// SubmitTest submits answers once and then reads back the attempt review.
func (s *Service) SubmitTest(ctx context.Context, scope Scope, testID courseapi.ID, answers map[string]string) (*SubmitOutcome, error) {
	if err := s.gateTest(ctx, scope, ActionStartTest, testID); err != nil {
		return nil, err
	}
	if len(answers) == 0 {
		return nil, errors.New("progression: no answers to submit")
	}

	key := scope.key()
	res, err := s.backend.SubmitTest(ctx, scope.Credential, scope.CourseID, testID, answers)
	if err != nil {
		if errors.Is(err, courseapi.ErrRejected) {
			// Another client got there first.
			s.recordAttempt(key, testID, nil)
			s.Invalidate(ctx, scope)
		}
		return nil, err
	}
	s.recordAttempt(key, testID, res.Score)
	s.Invalidate(ctx, scope)

	out := &SubmitOutcome{Result: res}
	logger := xlog.WithContext(xlog.WithScope(ctx, scope.logScope()), s.logger).With().
		Str(xlog.FieldTestID, string(testID)).
		Logger()

	hist, err := s.backend.TestHistory(ctx, scope.Credential, scope.CourseID)
	if err != nil {
		logger.Warn().Err(err).Str(xlog.FieldEvent, "progression.history_unavailable").Msg("submitted, but history could not be read")
		return out, nil
	}
	out.History = hist

	var latest *courseapi.AttemptSummary
	for i := range hist {
		if hist[i].TestID != testID {
			continue
		}
		if latest == nil || hist[i].SubmittedAt.After(latest.SubmittedAt) {
			latest = &hist[i]
		}
	}
	if latest == nil {
		return out, nil
	}
	detail, err := s.backend.TestHistoryDetail(ctx, scope.Credential, scope.CourseID, latest.ID)
	if err != nil {
		logger.Warn().Err(err).Str(xlog.FieldEvent, "progression.history_unavailable").Msg("submitted, but attempt review could not be read")
		return out, nil
	}
	out.Latest = detail
	return out, nil
}

// History lists the viewer's submitted attempts.
func (s *Service) History(ctx context.Context, scope Scope) ([]courseapi.AttemptSummary, error) {
	if err := checkScope(scope); err != nil {
		return nil, err
	}
	return s.backend.TestHistory(ctx, scope.Credential, scope.CourseID)
}

type externalWorkInput struct {
	Link string `validate:"required,url,startswith=http"`
}

// SubmitExternalWork records the link to the viewer's final project.
func (s *Service) SubmitExternalWork(ctx context.Context, scope Scope, link string) error {
	link = strings.TrimSpace(link)
	if err := validate.Struct(externalWorkInput{Link: link}); err != nil {
		return fmt.Errorf("progression: invalid external work link %q: %w", link, err)
	}
	view, err := s.View(ctx, scope)
	if err != nil {
		return err
	}
	a := view.ExternalWorkAction
	metrics.RecordGatedAction(string(a.Kind), a.Enabled)
	if !a.Enabled {
		return &ActionDisabledError{Action: a.Kind, Reason: a.Reason}
	}
	if err := s.backend.SubmitExternalWork(ctx, scope.Credential, scope.CourseID, link); err != nil {
		return err
	}
	s.recordExternalWork(scope.key())
	s.Invalidate(ctx, scope)
	return nil
}

// RequestCertificate asks the backend to issue the course certificate.
func (s *Service) RequestCertificate(ctx context.Context, scope Scope) (string, error) {
	view, err := s.View(ctx, scope)
	if err != nil {
		return "", err
	}
	a := view.CertificateAction
	metrics.RecordGatedAction(string(a.Kind), a.Enabled)
	if !a.Enabled {
		return "", &ActionDisabledError{Action: a.Kind, Reason: a.Reason}
	}
	return s.backend.RequestCertificate(ctx, scope.Credential, scope.CourseID)
}
