// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/ManuGH/courseflow/internal/progression"
)

func courseFlag(fs *flag.FlagSet, p *string) {
	fs.StringVar(p, "course", "", "course ID (required)")
}

func runProgress(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlagSet("progress", rt.errOut)
	var course string
	var refresh, asJSON bool
	courseFlag(fs, &course)
	fs.BoolVar(&refresh, "refresh", false, "bypass the progress cache")
	fs.BoolVar(&asJSON, "json", false, "print the view as JSON")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if course == "" {
		return usagef("--course is required")
	}

	svc, err := rt.progression()
	if err != nil {
		return err
	}
	scope, err := rt.scope(ctx, course)
	if err != nil {
		return err
	}
	var view progression.View
	if refresh {
		view, err = svc.Refresh(ctx, scope)
	} else {
		view, err = svc.View(ctx, scope)
	}
	if err != nil {
		return err
	}

	if asJSON {
		enc := json.NewEncoder(rt.out)
		enc.SetIndent("", "  ")
		return enc.Encode(viewJSON(view))
	}
	printView(rt.out, view)
	return nil
}

func printView(w io.Writer, view progression.View) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tMODULE\tTYPE\tSTATE\tACTION")
	for _, m := range view.OrderedModules {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", m.Order, m.Title, m.ItemType, m.State, describeAction(view.Actions[m.ID]))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nprogress: %d%% (%d/%d modules)\n", view.ProgressPercent, view.CompletedModules, view.TotalModules)
	fmt.Fprintf(w, "next: %s\n", describeAction(view.NextAction))
	fmt.Fprintf(w, "final project: %s\n", describeAction(view.ExternalWorkAction))
	fmt.Fprintf(w, "certificate: %s\n", describeAction(view.CertificateAction))
	if view.Invalid != nil {
		fmt.Fprintf(w, "warning: %v\n", view.Invalid)
	}
	for _, a := range view.Anomalies {
		fmt.Fprintf(w, "anomaly: %s module=%s order=%d\n", a.Kind, a.ModuleID, a.Order)
	}
}

func describeAction(a progression.Action) string {
	if a.Kind == progression.ActionNone {
		return "-"
	}
	s := string(a.Kind)
	if a.ItemID != "" {
		s += " " + string(a.ItemID)
	}
	if !a.Enabled {
		s += " (disabled: " + a.Reason + ")"
	}
	return s
}

type moduleJSON struct {
	ID        courseapi.ID `json:"id"`
	Title     string       `json:"title"`
	Order     int          `json:"order"`
	ItemType  string       `json:"item_type"`
	ItemID    courseapi.ID `json:"item_id"`
	State     string       `json:"state"`
	Attempted bool         `json:"attempted,omitempty"`
	Action    actionJSON   `json:"action"`
}

type actionJSON struct {
	Kind    string `json:"kind,omitempty"`
	ItemID  string `json:"item_id,omitempty"`
	Enabled bool   `json:"enabled"`
	Reason  string `json:"reason,omitempty"`
}

func toActionJSON(a progression.Action) actionJSON {
	return actionJSON{Kind: string(a.Kind), ItemID: string(a.ItemID), Enabled: a.Enabled, Reason: a.Reason}
}

func viewJSON(view progression.View) map[string]any {
	mods := make([]moduleJSON, 0, len(view.OrderedModules))
	for _, m := range view.OrderedModules {
		mods = append(mods, moduleJSON{
			ID:        m.ID,
			Title:     m.Title,
			Order:     m.Order,
			ItemType:  m.ItemType,
			ItemID:    m.ItemID,
			State:     string(m.State),
			Attempted: m.Attempted,
			Action:    toActionJSON(view.Actions[m.ID]),
		})
	}
	anomalies := make([]string, 0, len(view.Anomalies))
	for _, a := range view.Anomalies {
		anomalies = append(anomalies, fmt.Sprintf("%s:%s", a.Kind, a.ModuleID))
	}
	return map[string]any{
		"modules":          mods,
		"progress_percent": view.ProgressPercent,
		"next":             toActionJSON(view.NextAction),
		"external_work":    toActionJSON(view.ExternalWorkAction),
		"certificate":      toActionJSON(view.CertificateAction),
		"anomalies":        anomalies,
	}
}

func runTest(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlagSet("test", rt.errOut)
	var course, test, answers string
	courseFlag(fs, &course)
	fs.StringVar(&test, "test", "", "test ID (required)")
	fs.StringVar(&answers, "answers", "", "submit answers as questionID=option pairs, e.g. 1=A,2=C")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if course == "" || test == "" {
		return usagef("--course and --test are required")
	}

	svc, err := rt.progression()
	if err != nil {
		return err
	}
	scope, err := rt.scope(ctx, course)
	if err != nil {
		return err
	}

	if answers == "" {
		detail, err := svc.StartTest(ctx, scope, courseapi.ID(test))
		if err != nil {
			return err
		}
		printTest(rt.out, detail)
		return nil
	}

	parsed, err := parseAnswers(answers)
	if err != nil {
		return err
	}
	out, err := svc.SubmitTest(ctx, scope, courseapi.ID(test), parsed)
	if err != nil {
		return err
	}
	if out.Result.Message != "" {
		fmt.Fprintln(rt.out, out.Result.Message)
	}
	if out.Result.Score != nil && out.Result.TotalMarks != nil {
		fmt.Fprintf(rt.out, "score: %g/%g\n", *out.Result.Score, *out.Result.TotalMarks)
	}
	if out.Latest != nil {
		for _, a := range out.Latest.Answers {
			mark := "wrong"
			if a.IsCorrect {
				mark = "correct"
			}
			fmt.Fprintf(rt.out, "  %s: %s (answer %s) %s\n", a.Question, a.SelectedAnswer, a.CorrectAnswer, mark)
		}
	}
	return nil
}

func printTest(w io.Writer, detail *courseapi.TestDetail) {
	if detail.Test == nil {
		fmt.Fprintln(w, "test has no questions")
		return
	}
	fmt.Fprintf(w, "%s\n", detail.Test.Name)
	if detail.Test.Description != "" {
		fmt.Fprintln(w, detail.Test.Description)
	}
	for _, q := range detail.Test.Questions {
		fmt.Fprintf(w, "\n[%s] %s\n", q.ID, q.Text)
		fmt.Fprintf(w, "  A) %s\n  B) %s\n  C) %s\n  D) %s\n", q.OptionA, q.OptionB, q.OptionC, q.OptionD)
	}
}

// parseAnswers reads "1=A,2=c" into {"1":"A","2":"C"}.
func parseAnswers(raw string) (map[string]string, error) {
	out := map[string]string{}
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		q, opt, ok := strings.Cut(pair, "=")
		q, opt = strings.TrimSpace(q), strings.ToUpper(strings.TrimSpace(opt))
		if !ok || q == "" || len(opt) != 1 || opt < "A" || opt > "D" {
			return nil, usagef("invalid answer %q: want questionID=A..D", pair)
		}
		out[q] = opt
	}
	if len(out) == 0 {
		return nil, usagef("--answers is empty")
	}
	return out, nil
}

func runHistory(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlagSet("history", rt.errOut)
	var course string
	courseFlag(fs, &course)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if course == "" {
		return usagef("--course is required")
	}
	svc, err := rt.progression()
	if err != nil {
		return err
	}
	scope, err := rt.scope(ctx, course)
	if err != nil {
		return err
	}
	hist, err := svc.History(ctx, scope)
	if err != nil {
		return err
	}
	sort.SliceStable(hist, func(i, j int) bool { return hist[i].SubmittedAt.Before(hist[j].SubmittedAt) })

	tw := tabwriter.NewWriter(rt.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ATTEMPT\tTEST\tSCORE\tSUBMITTED")
	for _, a := range hist {
		fmt.Fprintf(tw, "%s\t%s\t%g/%g\t%s\n", a.ID, a.TestName, a.Score, a.TotalMarks, a.SubmittedAt.Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}

func runSubmitLink(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlagSet("submit-link", rt.errOut)
	var course, link string
	courseFlag(fs, &course)
	fs.StringVar(&link, "url", "", "link to the final project repository (required)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if course == "" || link == "" {
		return usagef("--course and --url are required")
	}
	svc, err := rt.progression()
	if err != nil {
		return err
	}
	scope, err := rt.scope(ctx, course)
	if err != nil {
		return err
	}
	if err := svc.SubmitExternalWork(ctx, scope, link); err != nil {
		return err
	}
	fmt.Fprintln(rt.out, "final project link recorded")
	return nil
}

func runCertificate(ctx context.Context, rt *runtime, args []string) error {
	fs := newFlagSet("certificate", rt.errOut)
	var course string
	courseFlag(fs, &course)
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if course == "" {
		return usagef("--course is required")
	}
	svc, err := rt.progression()
	if err != nil {
		return err
	}
	scope, err := rt.scope(ctx, course)
	if err != nil {
		return err
	}
	msg, err := svc.RequestCertificate(ctx, scope)
	if err != nil {
		return err
	}
	if msg == "" {
		msg = "certificate requested"
	}
	fmt.Fprintln(rt.out, msg)
	return nil
}
