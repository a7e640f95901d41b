// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package progression derives what a viewer may do next in a course from
// the server's module progress records.
//
// The server owns unlock and completion state. ComputeView never infers
// unlocks from completion; it only refuses server unlocks that would skip an
// incomplete predecessor, and flags them.
package progression

import (
	"math"
	"sort"

	"github.com/ManuGH/courseflow/internal/courseapi"
)

// ModuleState is the server-owned lifecycle of a module.
type ModuleState string

const (
	StateLocked    ModuleState = "locked"
	StateUnlocked  ModuleState = "unlocked"
	StateCompleted ModuleState = "completed"
)

func (s ModuleState) rank() int {
	switch s {
	case StateCompleted:
		return 2
	case StateUnlocked:
		return 1
	default:
		return 0
	}
}

const (
	ItemVideo = "video"
	ItemTest  = "test"
)

// ActionKind names a viewer action.
type ActionKind string

const (
	ActionNone               ActionKind = ""
	ActionStartVideo         ActionKind = "start_video"
	ActionStartTest          ActionKind = "start_test"
	ActionOpen               ActionKind = "open"
	ActionSubmitExternalWork ActionKind = "submit_external_work"
	ActionRequestCertificate ActionKind = "request_certificate"
)

// Disabled reasons.
const (
	ReasonLocked           = "locked"
	ReasonAttempted        = "already attempted"
	ReasonCourseIncomplete = "last module not completed"
	ReasonAlreadyRecorded  = "external work already recorded"
	ReasonNotRecorded      = "external work not recorded"
	ReasonInvalidOrdering  = "module ordering is invalid"
	ReasonEmptyCourse      = "course has no modules"
)

// Action is a possibly disabled viewer action.
type Action struct {
	Kind     ActionKind
	ModuleID courseapi.ID
	ItemID   courseapi.ID
	Enabled  bool
	Reason   string
}

// Module is a module record as the viewer sees it.
type Module struct {
	ID          courseapi.ID
	Title       string
	Order       int
	ItemType    string
	ItemID      courseapi.ID
	State       ModuleState
	Interactive bool
	Attempted   bool
}

// TestAttempt is the viewer's attempt state for one test.
type TestAttempt struct {
	Attempted bool
	Score     *float64
}

// CourseContext carries per-viewer facts that are not in the module records.
type CourseContext struct {
	Attempts             map[courseapi.ID]TestAttempt
	ExternalWorkRecorded bool
}

// AnomalyKind classifies a flagged inconsistency.
type AnomalyKind string

const (
	AnomalyDuplicateOrder           AnomalyKind = "duplicate_order"
	AnomalyUnlockWithoutPredecessor AnomalyKind = "unlock_without_predecessor"
	AnomalyRegression               AnomalyKind = "regression"
)

// Anomaly is a flagged inconsistency in server data.
type Anomaly struct {
	Kind     AnomalyKind
	ModuleID courseapi.ID
	Order    int
	From     ModuleState
	To       ModuleState
}

// View is the derived course state.
type View struct {
	OrderedModules     []Module
	UnlockedSet        map[courseapi.ID]bool
	Actions            map[courseapi.ID]Action
	NextAction         Action
	ExternalWorkAction Action
	CertificateAction  Action
	CompletedModules   int
	TotalModules       int
	ProgressPercent    int
	Anomalies          []Anomaly
	// Invalid is set when the ordering could not be trusted.
	Invalid *ValidationError
}

// Module returns the module with id.
func (v View) Module(id courseapi.ID) (Module, bool) {
	for _, m := range v.OrderedModules {
		if m.ID == id {
			return m, true
		}
	}
	return Module{}, false
}

// TestModule returns the module holding testID.
func (v View) TestModule(testID courseapi.ID) (Module, bool) {
	for _, m := range v.OrderedModules {
		if m.ItemType == ItemTest && m.ItemID == testID {
			return m, true
		}
	}
	return Module{}, false
}

// ComputeView derives the viewer's course state. It never fails: malformed
// input is flagged and degrades to only the first module being open.
func ComputeView(records []courseapi.ModuleRecord, cctx CourseContext) View {
	sorted := make([]courseapi.ModuleRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Order < sorted[j].Order })

	v := View{
		OrderedModules: make([]Module, 0, len(sorted)),
		UnlockedSet:    make(map[courseapi.ID]bool, len(sorted)),
		Actions:        make(map[courseapi.ID]Action, len(sorted)),
		TotalModules:   len(sorted),
	}
	v.Invalid = duplicateOrders(sorted)
	if v.Invalid != nil {
		for i := 1; i < len(sorted); i++ {
			if sorted[i].Order == sorted[i-1].Order {
				v.Anomalies = append(v.Anomalies, Anomaly{Kind: AnomalyDuplicateOrder, ModuleID: sorted[i].ID, Order: sorted[i].Order})
			}
		}
	}

	for i, rec := range sorted {
		m := Module{
			ID:        rec.ID,
			Title:     rec.Title,
			Order:     rec.Order,
			ItemType:  rec.ItemType,
			ItemID:    rec.ItemID,
			Attempted: attempted(rec, cctx),
		}

		unlocked := rec.IsUnlocked
		switch {
		case i == 0:
			unlocked = true
		case v.Invalid != nil:
			unlocked = false
		case unlocked && !sorted[i-1].IsCompleted:
			v.Anomalies = append(v.Anomalies, Anomaly{Kind: AnomalyUnlockWithoutPredecessor, ModuleID: rec.ID, Order: rec.Order})
			unlocked = false
		}

		m.Interactive = unlocked
		switch {
		case rec.IsCompleted:
			m.State = StateCompleted
			v.CompletedModules++
		case unlocked:
			m.State = StateUnlocked
		default:
			m.State = StateLocked
		}
		if unlocked {
			v.UnlockedSet[m.ID] = true
		}

		v.Actions[m.ID] = startAction(m)
		v.OrderedModules = append(v.OrderedModules, m)
	}

	if v.TotalModules > 0 {
		v.ProgressPercent = int(math.Round(float64(v.CompletedModules) / float64(v.TotalModules) * 100))
	}
	v.ExternalWorkAction, v.CertificateAction = courseActions(v, sorted, cctx)
	v.NextAction = nextAction(v)
	return v
}

func duplicateOrders(sorted []courseapi.ModuleRecord) *ValidationError {
	var dup map[int][]courseapi.ID
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Order != sorted[i-1].Order {
			continue
		}
		if dup == nil {
			dup = make(map[int][]courseapi.ID)
		}
		o := sorted[i].Order
		if len(dup[o]) == 0 {
			dup[o] = append(dup[o], sorted[i-1].ID)
		}
		dup[o] = append(dup[o], sorted[i].ID)
	}
	if dup == nil {
		return nil
	}
	return &ValidationError{DuplicateOrders: dup}
}

func attempted(rec courseapi.ModuleRecord, cctx CourseContext) bool {
	if rec.ItemType != ItemTest {
		return false
	}
	if rec.Attempted != nil && *rec.Attempted {
		return true
	}
	return cctx.Attempts[rec.ItemID].Attempted
}

func startAction(m Module) Action {
	a := Action{ModuleID: m.ID, ItemID: m.ItemID, Enabled: m.Interactive}
	switch m.ItemType {
	case ItemVideo:
		a.Kind = ActionStartVideo
	case ItemTest:
		a.Kind = ActionStartTest
		if m.Attempted {
			a.Enabled = false
			a.Reason = ReasonAttempted
		}
	default:
		a.Kind = ActionOpen
	}
	if !m.Interactive {
		a.Reason = ReasonLocked
	}
	return a
}

func courseActions(v View, sorted []courseapi.ModuleRecord, cctx CourseContext) (external, certificate Action) {
	external = Action{Kind: ActionSubmitExternalWork}
	certificate = Action{Kind: ActionRequestCertificate}

	var reason string
	switch {
	case len(sorted) == 0:
		reason = ReasonEmptyCourse
	case v.Invalid != nil:
		reason = ReasonInvalidOrdering
	case !sorted[len(sorted)-1].IsCompleted:
		reason = ReasonCourseIncomplete
	}
	if reason != "" {
		external.Reason, certificate.Reason = reason, reason
		return external, certificate
	}

	if cctx.ExternalWorkRecorded {
		external.Reason = ReasonAlreadyRecorded
		certificate.Enabled = true
	} else {
		external.Enabled = true
		certificate.Reason = ReasonNotRecorded
	}
	return external, certificate
}

// nextAction picks the first open, unfinished module whose start action is
// enabled, then external work, then the certificate.
func nextAction(v View) Action {
	for _, m := range v.OrderedModules {
		if !m.Interactive || m.State == StateCompleted {
			continue
		}
		if a := v.Actions[m.ID]; a.Enabled {
			return a
		}
	}
	if v.ExternalWorkAction.Enabled {
		return v.ExternalWorkAction
	}
	if v.CertificateAction.Enabled {
		return v.CertificateAction
	}
	return Action{Kind: ActionNone}
}

// Observe reports modules whose state moved backward between two views.
func Observe(prev, next View) []Anomaly {
	before := make(map[courseapi.ID]ModuleState, len(prev.OrderedModules))
	for _, m := range prev.OrderedModules {
		before[m.ID] = m.State
	}
	var out []Anomaly
	for _, m := range next.OrderedModules {
		was, ok := before[m.ID]
		if ok && m.State.rank() < was.rank() {
			out = append(out, Anomaly{Kind: AnomalyRegression, ModuleID: m.ID, Order: m.Order, From: was, To: m.State})
		}
	}
	return out
}
