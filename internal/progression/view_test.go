// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progression

import (
	"errors"
	"testing"

	"github.com/ManuGH/courseflow/internal/courseapi"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rec = courseapi.ModuleRecord

func video(id courseapi.ID, order int, unlocked, completed bool) rec {
	return rec{ID: id, Order: order, ItemType: ItemVideo, ItemID: "v" + id, IsUnlocked: unlocked, IsCompleted: completed}
}

func quiz(id courseapi.ID, order int, unlocked, completed, attempted bool) rec {
	return rec{ID: id, Order: order, ItemType: ItemTest, ItemID: "t" + id, IsUnlocked: unlocked, IsCompleted: completed, Attempted: &attempted}
}

func states(v View) []ModuleState {
	out := make([]ModuleState, 0, len(v.OrderedModules))
	for _, m := range v.OrderedModules {
		out = append(out, m.State)
	}
	return out
}

func TestEmptyCourse(t *testing.T) {
	v := ComputeView(nil, CourseContext{})
	assert.Zero(t, v.ProgressPercent)
	assert.Equal(t, ActionNone, v.NextAction.Kind)
	assert.False(t, v.ExternalWorkAction.Enabled)
	assert.Equal(t, ReasonEmptyCourse, v.ExternalWorkAction.Reason)
	assert.False(t, v.CertificateAction.Enabled)
	assert.Empty(t, v.Anomalies)
	assert.Nil(t, v.Invalid)
}

func TestSortsByOrderAndFollowsServerUnlocks(t *testing.T) {
	v := ComputeView([]rec{
		quiz("3", 3, false, false, false),
		video("1", 1, true, true),
		video("2", 2, true, false),
	}, CourseContext{})

	ids := make([]courseapi.ID, 0, 3)
	for _, m := range v.OrderedModules {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []courseapi.ID{"1", "2", "3"}, ids)
	assert.Equal(t, []ModuleState{StateCompleted, StateUnlocked, StateLocked}, states(v))
	assert.Equal(t, map[courseapi.ID]bool{"1": true, "2": true}, v.UnlockedSet)
	assert.Equal(t, 33, v.ProgressPercent)

	assert.Equal(t, Action{Kind: ActionStartVideo, ModuleID: "2", ItemID: "v2", Enabled: true}, v.NextAction)
	assert.Equal(t, Action{Kind: ActionStartTest, ModuleID: "3", ItemID: "t3", Reason: ReasonLocked}, v.Actions["3"])
}

func TestFirstModuleAlwaysOpen(t *testing.T) {
	v := ComputeView([]rec{video("1", 1, false, false), video("2", 2, false, false)}, CourseContext{})
	assert.True(t, v.UnlockedSet["1"])
	assert.True(t, v.Actions["1"].Enabled)
	assert.Equal(t, courseapi.ID("1"), v.NextAction.ModuleID)
}

func TestNoInferredUnlocks(t *testing.T) {
	// Completion alone does not open the successor; the server decides.
	v := ComputeView([]rec{video("1", 1, true, true), video("2", 2, false, false)}, CourseContext{})
	assert.False(t, v.UnlockedSet["2"])
	assert.Equal(t, ActionNone, v.NextAction.Kind)
}

func TestUnlockWithoutPredecessorIsRefused(t *testing.T) {
	v := ComputeView([]rec{
		video("1", 1, true, false),
		video("2", 2, true, false),
	}, CourseContext{})

	assert.False(t, v.UnlockedSet["2"])
	assert.Equal(t, StateLocked, v.OrderedModules[1].State)
	assert.False(t, v.Actions["2"].Enabled)
	require.Len(t, v.Anomalies, 1)
	assert.Equal(t, Anomaly{Kind: AnomalyUnlockWithoutPredecessor, ModuleID: "2", Order: 2}, v.Anomalies[0])
}

func TestDuplicateOrdersDegrade(t *testing.T) {
	v := ComputeView([]rec{
		video("1", 1, true, true),
		video("2", 2, true, true),
		quiz("3", 2, true, true, true),
		video("4", 3, true, true),
	}, CourseContext{})

	require.NotNil(t, v.Invalid)
	var verr *ValidationError
	require.True(t, errors.As(error(v.Invalid), &verr))
	assert.Equal(t, []courseapi.ID{"2", "3"}, verr.DuplicateOrders[2])
	assert.Equal(t, KindValidation, verr.Kind())
	assert.Contains(t, verr.Error(), "order 2 shared by modules 2,3")

	assert.Equal(t, map[courseapi.ID]bool{"1": true}, v.UnlockedSet)
	for _, id := range []courseapi.ID{"2", "3", "4"} {
		assert.False(t, v.Actions[id].Enabled, id)
	}
	assert.False(t, v.ExternalWorkAction.Enabled)
	assert.Equal(t, ReasonInvalidOrdering, v.CertificateAction.Reason)
	assert.Contains(t, v.Anomalies, Anomaly{Kind: AnomalyDuplicateOrder, ModuleID: "3", Order: 2})
	// Completion is still reported as the server said.
	assert.Equal(t, 100, v.ProgressPercent)
}

func TestTestStartGatedByAttempt(t *testing.T) {
	t.Run("record says attempted", func(t *testing.T) {
		v := ComputeView([]rec{video("1", 1, true, true), quiz("2", 2, true, false, true)}, CourseContext{})
		a := v.Actions["2"]
		assert.False(t, a.Enabled)
		assert.Equal(t, ReasonAttempted, a.Reason)
		assert.Equal(t, ActionNone, v.NextAction.Kind)
	})

	t.Run("context says attempted", func(t *testing.T) {
		records := []rec{video("1", 1, true, true), {ID: "2", Order: 2, ItemType: ItemTest, ItemID: "t2", IsUnlocked: true}}
		assert.True(t, ComputeView(records, CourseContext{}).Actions["2"].Enabled)

		v := ComputeView(records, CourseContext{Attempts: map[courseapi.ID]TestAttempt{"t2": {Attempted: true}}})
		assert.False(t, v.Actions["2"].Enabled)
	})
}

func TestCourseCompletionActions(t *testing.T) {
	done := []rec{video("1", 1, true, true), quiz("2", 2, true, true, true)}

	t.Run("incomplete", func(t *testing.T) {
		v := ComputeView([]rec{video("1", 1, true, true), quiz("2", 2, true, false, false)}, CourseContext{})
		assert.False(t, v.ExternalWorkAction.Enabled)
		assert.Equal(t, ReasonCourseIncomplete, v.ExternalWorkAction.Reason)
		assert.False(t, v.CertificateAction.Enabled)
	})

	t.Run("complete without link", func(t *testing.T) {
		v := ComputeView(done, CourseContext{})
		assert.True(t, v.ExternalWorkAction.Enabled)
		assert.False(t, v.CertificateAction.Enabled)
		assert.Equal(t, ReasonNotRecorded, v.CertificateAction.Reason)
		assert.Equal(t, ActionSubmitExternalWork, v.NextAction.Kind)
		assert.Equal(t, 100, v.ProgressPercent)
	})

	t.Run("complete with link", func(t *testing.T) {
		v := ComputeView(done, CourseContext{ExternalWorkRecorded: true})
		assert.False(t, v.ExternalWorkAction.Enabled)
		assert.Equal(t, ReasonAlreadyRecorded, v.ExternalWorkAction.Reason)
		assert.True(t, v.CertificateAction.Enabled)
		assert.Equal(t, ActionRequestCertificate, v.NextAction.Kind)
	})
}

func TestProgressPercentRounds(t *testing.T) {
	records := []rec{
		video("1", 1, true, true),
		video("2", 2, true, true),
		video("3", 3, true, false),
	}
	assert.Equal(t, 67, ComputeView(records, CourseContext{}).ProgressPercent)
}

func TestInputIsNotReordered(t *testing.T) {
	records := []rec{video("2", 2, false, false), video("1", 1, true, false)}
	_ = ComputeView(records, CourseContext{})
	assert.Equal(t, courseapi.ID("2"), records[0].ID)
}

func TestObserve(t *testing.T) {
	prev := ComputeView([]rec{
		video("1", 1, true, true),
		video("2", 2, true, false),
		video("3", 3, false, false),
	}, CourseContext{})

	t.Run("forward progress", func(t *testing.T) {
		next := ComputeView([]rec{
			video("1", 1, true, true),
			video("2", 2, true, true),
			video("3", 3, true, false),
		}, CourseContext{})
		assert.Empty(t, Observe(prev, next))
	})

	t.Run("regression", func(t *testing.T) {
		next := ComputeView([]rec{
			video("1", 1, true, false),
			video("2", 2, false, false),
			video("3", 3, false, false),
		}, CourseContext{})
		want := []Anomaly{
			{Kind: AnomalyRegression, ModuleID: "1", Order: 1, From: StateCompleted, To: StateUnlocked},
			{Kind: AnomalyRegression, ModuleID: "2", Order: 2, From: StateUnlocked, To: StateLocked},
		}
		if diff := cmp.Diff(want, Observe(prev, next)); diff != "" {
			t.Errorf("Observe mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("new modules are not regressions", func(t *testing.T) {
		next := ComputeView([]rec{video("9", 1, true, false)}, CourseContext{})
		assert.Empty(t, Observe(prev, next))
	})
}

func TestActionDisabledError(t *testing.T) {
	err := error(&ActionDisabledError{Action: ActionStartTest, ModuleID: "4", Reason: ReasonAttempted})
	assert.ErrorIs(t, err, ErrActionDisabled)
	assert.Equal(t, "progression: start_test disabled for module 4: already attempted", err.Error())
}
