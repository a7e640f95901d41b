// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/ManuGH/courseflow/internal/ingest"
	xlog "github.com/ManuGH/courseflow/internal/log"
)

func runIngest(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlagSet("ingest", rt.errOut)
	var (
		file, title, description, course, module, contentType string
	)
	fs.StringVar(&file, "file", "", "video file to upload (required)")
	fs.StringVar(&title, "title", "", "video title (required)")
	fs.StringVar(&description, "description", "", "video description")
	fs.StringVar(&course, "course", "", "course ID (required)")
	fs.StringVar(&module, "module", "", "module ID the video belongs to")
	fs.StringVar(&contentType, "content-type", "", "MIME type; derived from the file extension when empty")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if file == "" {
		return usagef("--file is required")
	}
	if !rt.cred.Valid() {
		return errNoToken
	}

	// #nosec G304 -- the operator names the file to upload
	f, err := os.Open(filepath.Clean(file))
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	st, err := f.Stat()
	if err != nil {
		return err
	}
	if contentType == "" {
		contentType = mime.TypeByExtension(strings.ToLower(filepath.Ext(file)))
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	orch := rt.orchestrator()
	in, err := orch.Begin(ctx, rt.cred, ingest.Source{
		Reader:      f,
		Size:        st.Size(),
		ContentType: contentType,
		Name:        filepath.Base(file),
	}, ingest.Metadata{
		Title:       title,
		Description: description,
		CourseID:    courseapi.ID(course),
		ModuleID:    courseapi.ID(module),
	})
	if err != nil {
		return err
	}
	// Cancellation of ctx stops the ingestion; Cancel is idempotent.
	defer in.Cancel()

	last := ingest.PhaseEvent{}
	for ev := range in.Events() {
		if ev.Phase == last.Phase && ev.ProgressPercent == last.ProgressPercent && !ev.Phase.Terminal() {
			continue
		}
		last = ev
		line := fmt.Sprintf("%-12s %3d%%", ev.Phase, ev.ProgressPercent)
		if ev.MediaID != "" {
			line += " media=" + string(ev.MediaID)
		}
		if ev.ErrorKind != "" {
			line += " error=" + ev.ErrorKind
		}
		fmt.Fprintln(rt.out, line)
	}

	res, err := in.Wait()
	if err != nil {
		var orphan *ingest.OrphanedUploadError
		if errors.As(err, &orphan) && orch.Ledger() != nil {
			fmt.Fprintf(rt.out, "orphaned upload %s recorded in %s\n", orphan.ObjectKey, orch.Ledger().Path())
		}
		rt.logger.Error().
			Err(err).
			Str(xlog.FieldEvent, "ingest.failed").
			Str(xlog.FieldErrorKind, ingest.KindOf(err)).
			Msg("ingestion did not complete")
		return err
	}

	fmt.Fprintf(rt.out, "media %s is ready\n", res.Asset.ID)
	labels := make([]string, 0, len(res.Asset.Variants))
	for label := range res.Asset.Variants {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	for _, label := range labels {
		fmt.Fprintf(rt.out, "  %-8s %s\n", label, res.Asset.Variants[label])
	}
	return nil
}
