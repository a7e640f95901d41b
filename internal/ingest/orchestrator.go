// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package ingest uploads media and follows it through server-side processing.
//
// The pipeline is: check upload privilege, request a presigned slot, stream
// the binary, register the processing job, poll its status until ready or
// failed. Nothing is retried except the poll tick itself.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/ManuGH/courseflow/internal/hls"
	xlog "github.com/ManuGH/courseflow/internal/log"
	"github.com/ManuGH/courseflow/internal/metrics"
	"github.com/ManuGH/courseflow/internal/telemetry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const tracerName = "courseflow.ingest"

// Backend is the part of the course API the pipeline needs.
type Backend interface {
	Me(ctx context.Context, cred courseapi.Credential) (*courseapi.User, error)
	PresignUpload(ctx context.Context, cred courseapi.Credential) (*courseapi.UploadSlot, error)
	CreateVideo(ctx context.Context, cred courseapi.Credential, req courseapi.CreateVideoRequest) (courseapi.ID, error)
	StatusSource
}

// VariantResolver expands a stream locator into its quality catalog.
type VariantResolver interface {
	Variants(ctx context.Context, locator string) ([]hls.Variant, error)
}

// Config tunes the orchestrator.
type Config struct {
	Poll PollerConfig
	// UploadRoles lists the /me/ roles allowed to upload. Empty means admin only.
	UploadRoles []string
	// LedgerPath enables the orphaned-upload ledger when set.
	LedgerPath string
}

// Orchestrator starts ingestions.
type Orchestrator struct {
	backend   Backend
	transport *Transport
	variants  VariantResolver
	ledger    *OrphanLedger
	cfg       Config
	roles     map[string]bool
	logger    zerolog.Logger
}

// NewOrchestrator wires an orchestrator.
func NewOrchestrator(backend Backend, transport *Transport, variants VariantResolver, cfg Config) *Orchestrator {
	roles := map[string]bool{}
	for _, r := range cfg.UploadRoles {
		if r = strings.ToLower(strings.TrimSpace(r)); r != "" {
			roles[r] = true
		}
	}
	if len(roles) == 0 {
		roles["admin"] = true
	}
	o := &Orchestrator{
		backend:   backend,
		transport: transport,
		variants:  variants,
		cfg:       cfg,
		roles:     roles,
		logger:    xlog.WithComponent("ingest"),
	}
	if cfg.LedgerPath != "" {
		o.ledger = NewOrphanLedger(cfg.LedgerPath)
	}
	return o
}

// Ledger returns the orphan ledger, or nil when disabled.
func (o *Orchestrator) Ledger() *OrphanLedger { return o.ledger }

// Begin validates the input and starts the pipeline. Invalid input fails
// here with a *ValidationError before any request is made.
func (o *Orchestrator) Begin(ctx context.Context, cred courseapi.Credential, src Source, meta Metadata) (*Ingestion, error) {
	if err := validateInput(src, meta); err != nil {
		metrics.RecordIngestOutcome("rejected", KindValidation)
		return nil, err
	}
	if !cred.Valid() {
		return nil, &AuthorizationError{Op: "begin", Err: courseapi.ErrNoCredential}
	}
	meta.Title = strings.TrimSpace(meta.Title)

	ctx = xlog.WithScope(ctx, xlog.Scope{CourseID: meta.CourseID.String()})
	in := newIngestion(ctx, MediaAsset{CourseID: meta.CourseID, ModuleID: meta.ModuleID})
	r := &run{
		o:    o,
		in:   in,
		cred: cred,
		src:  src,
		meta: meta,
		logger: xlog.WithContext(ctx, o.logger).With().
			Str(xlog.FieldSessionID, uuid.NewString()).
			Logger(),
	}
	go in.forward()
	go func() {
		res, err := r.execute(in.ctx)
		in.finish(res, err)
	}()
	return in, nil
}

// run is the state of one pipeline execution.
type run struct {
	o      *Orchestrator
	in     *Ingestion
	cred   courseapi.Credential
	src    Source
	meta   Metadata
	logger zerolog.Logger

	phase   Phase
	percent int
}

func (r *run) execute(ctx context.Context) (Result, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "ingest.run",
		telemetry.MediaAttributes(r.meta.CourseID.String(), "", "")...)
	res, err := r.pipeline(ctx)
	if res.Asset.ID != "" {
		span.SetAttributes(telemetry.MediaAttributes("", res.Asset.ID.String(), "")...)
	}
	if err != nil && ctx.Err() == nil {
		span.SetAttributes(telemetry.KindAttribute(KindOf(err)))
	}
	telemetry.EndSpan(span, err)

	if ctx.Err() != nil {
		r.logger.Info().
			Str(xlog.FieldEvent, "ingest.cancelled").
			Str(xlog.FieldPhase, string(r.phase)).
			Msg("ingestion cancelled")
		metrics.RecordIngestOutcome("cancelled", "")
		return Result{}, ctx.Err()
	}
	if err != nil {
		kind := KindOf(err)
		r.emit(PhaseEvent{Phase: PhaseFailed, ProgressPercent: r.percent, MediaID: res.Asset.ID, ErrorKind: kind, Err: err})
		r.logger.Warn().Err(err).
			Str(xlog.FieldEvent, "ingest.failed").
			Str(xlog.FieldErrorKind, kind).
			Msg("ingestion failed")
		metrics.RecordIngestOutcome("failed", kind)
		return res, err
	}
	metrics.RecordIngestOutcome("ready", "")
	return res, nil
}

func (r *run) pipeline(ctx context.Context) (Result, error) {
	var res Result

	if err := r.authorize(ctx); err != nil {
		return res, err
	}

	slot, err := r.o.backend.PresignUpload(ctx, r.cred)
	if err != nil {
		if errors.Is(err, courseapi.ErrUnauthorized) {
			return res, &AuthorizationError{Op: "presign", Err: err}
		}
		return res, fmt.Errorf("request upload slot: %w", err)
	}
	res.Asset.ObjectKey = slot.Key
	r.setObjectKey(slot.Key)

	r.emit(PhaseEvent{Phase: PhaseUploading})
	err = r.o.transport.Put(ctx, Destination{URL: slot.UploadURL, ObjectKey: slot.Key}, r.src, func(p Progress) {
		r.emit(PhaseEvent{Phase: PhaseUploading, ProgressPercent: p.Percent})
	})
	if err != nil {
		return res, err
	}

	r.emit(PhaseEvent{Phase: PhaseRegistering})
	mediaID, err := r.o.backend.CreateVideo(ctx, r.cred, courseapi.CreateVideoRequest{
		Title:       r.meta.Title,
		Description: r.meta.Description,
		Course:      r.meta.CourseID,
		Module:      r.meta.ModuleID,
		R2Key:       slot.Key,
	})
	if err != nil {
		if ctx.Err() != nil {
			r.logger.Warn().Str(xlog.FieldObjectKey, slot.Key).
				Str(xlog.FieldEvent, "ingest.cancelled_during_registration").
				Msg("cancelled while registering, object may be orphaned")
			r.recordOrphan(slot.Key, ctx.Err())
			return res, ctx.Err()
		}
		return res, r.orphaned(slot.Key, err)
	}
	res.Asset.ID = mediaID
	r.logger = r.logger.With().Str(xlog.FieldMediaID, mediaID.String()).Logger()

	poller := NewPoller(r.o.backend, r.cred, r.o.cfg.Poll)
	final, err := poller.Run(ctx, mediaID, func(st courseapi.JobStatus) {
		if phase, ok := processingPhase(st); ok {
			telemetry.Annotate(ctx, telemetry.PhaseAttribute(string(phase)))
			r.emit(PhaseEvent{Phase: phase, ProgressPercent: percentOf(st.Progress), MediaID: mediaID})
		}
	})
	if err != nil {
		return res, err
	}

	if final.Status == StatusFailed {
		reason := final.ErrorKind
		if reason == "" {
			reason = "unknown"
		}
		return res, &ProcessingFailedError{MediaID: mediaID.String(), Reason: reason, Message: final.Error}
	}

	variants, err := r.resolveVariants(ctx, mediaID, final.VideoURL)
	if err != nil {
		return res, err
	}
	res.Variants = variants
	res.Asset.Variants = make(map[string]string, len(variants))
	for _, v := range variants {
		res.Asset.Variants[v.Label] = v.URI
	}
	r.setVariants(res.Asset.Variants)

	r.emit(PhaseEvent{Phase: PhaseReady, ProgressPercent: 100, MediaID: mediaID, Variants: variants})
	res.Asset = r.in.Asset()
	return res, nil
}

func (r *run) authorize(ctx context.Context) error {
	me, err := r.o.backend.Me(ctx, r.cred)
	if err != nil {
		if errors.Is(err, courseapi.ErrUnauthorized) {
			return &AuthorizationError{Op: "identify", Err: err}
		}
		return fmt.Errorf("identify uploader: %w", err)
	}
	role := strings.ToLower(strings.TrimSpace(me.Role))
	if !r.o.roles[role] {
		return &AuthorizationError{Op: "upload", Role: me.Role}
	}
	return nil
}

func (r *run) orphaned(key string, cause error) error {
	oe := &OrphanedUploadError{ObjectKey: key, Err: cause}
	metrics.RecordOrphanedUpload()
	r.logger.Error().Err(cause).
		Str(xlog.FieldEvent, "ingest.orphaned_upload").
		Str(xlog.FieldObjectKey, key).
		Msg("object stored but job registration failed")
	r.recordOrphan(key, cause)
	return oe
}

// recordOrphan appends key to the ledger, if one is configured. Ledger
// failures are logged and never reach the caller.
func (r *run) recordOrphan(key string, cause error) {
	if r.o.ledger == nil {
		return
	}
	rec := OrphanRecord{
		ObjectKey: key,
		Title:     r.meta.Title,
		CourseID:  r.meta.CourseID.String(),
		Reason:    cause.Error(),
		At:        time.Now().UTC(),
	}
	if err := r.o.ledger.Append(rec); err != nil {
		r.logger.Error().Err(err).Str(xlog.FieldObjectKey, key).Msg("failed to record orphaned upload")
	}
}

func (r *run) resolveVariants(ctx context.Context, mediaID courseapi.ID, locator string) ([]hls.Variant, error) {
	if strings.TrimSpace(locator) == "" {
		return nil, &ProcessingFailedError{MediaID: mediaID.String(), Reason: "no_variants", Message: "ready without video_url"}
	}
	if r.o.variants == nil {
		return []hls.Variant{hls.SingleVariant(locator)}, nil
	}
	variants, err := r.o.variants.Variants(ctx, locator)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &ProcessingFailedError{MediaID: mediaID.String(), Reason: "variant_resolution", Err: err}
	}
	if len(variants) == 0 {
		return nil, &ProcessingFailedError{MediaID: mediaID.String(), Reason: "no_variants"}
	}
	return variants, nil
}

// emit forwards ev, keeping progress monotonic within a phase and dropping
// repeats of the same phase and percent.
func (r *run) emit(ev PhaseEvent) {
	if ev.Phase == r.phase && !ev.Phase.Terminal() {
		if ev.ProgressPercent <= r.percent {
			return
		}
	}
	ev.ProgressPercent = clampPercent(ev.ProgressPercent)
	if !r.in.emit(ev) {
		return
	}
	if ev.Phase != r.phase {
		metrics.RecordIngestPhase(string(ev.Phase))
		r.logger.Info().
			Str(xlog.FieldEvent, "ingest.phase").
			Str(xlog.FieldPhase, string(ev.Phase)).
			Int(xlog.FieldProgress, ev.ProgressPercent).
			Msg("ingestion phase changed")
	}
	r.phase, r.percent = ev.Phase, ev.ProgressPercent
}

func (r *run) setObjectKey(key string) {
	r.in.mu.Lock()
	r.in.asset.ObjectKey = key
	r.in.mu.Unlock()
}

func (r *run) setVariants(v map[string]string) {
	r.in.mu.Lock()
	r.in.asset.Variants = v
	r.in.mu.Unlock()
}

// processingPhase maps a non-terminal job status to a phase.
func processingPhase(st courseapi.JobStatus) (Phase, bool) {
	for _, s := range []string{st.Status, strings.ToLower(strings.TrimSpace(st.Stage))} {
		switch s {
		case StatusConverting:
			return PhaseConverting, true
		case StatusPackaging:
			return PhasePackaging, true
		}
	}
	return "", false
}

func percentOf(p float64) int {
	if math.IsNaN(p) {
		return 0
	}
	return clampPercent(int(math.Round(p)))
}

func clampPercent(p int) int {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
