// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package progression

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ManuGH/courseflow/internal/courseapi"
)

const (
	KindValidation     = "validation"
	KindActionDisabled = "action_disabled"
)

// ErrActionDisabled is matched by every *ActionDisabledError.
var ErrActionDisabled = errors.New("progression: action disabled")

// ValidationError reports malformed module ordering. It is carried on the
// View; computing a view never fails.
type ValidationError struct {
	// DuplicateOrders maps an order value to the modules sharing it.
	DuplicateOrders map[int][]courseapi.ID
}

func (e *ValidationError) Error() string {
	orders := make([]int, 0, len(e.DuplicateOrders))
	for o := range e.DuplicateOrders {
		orders = append(orders, o)
	}
	sort.Ints(orders)
	parts := make([]string, 0, len(orders))
	for _, o := range orders {
		ids := make([]string, 0, len(e.DuplicateOrders[o]))
		for _, id := range e.DuplicateOrders[o] {
			ids = append(ids, string(id))
		}
		parts = append(parts, fmt.Sprintf("order %d shared by modules %s", o, strings.Join(ids, ",")))
	}
	return "progression: invalid module ordering: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Kind() string { return KindValidation }

// ActionDisabledError is a gated action the viewer may not take.
type ActionDisabledError struct {
	Action   ActionKind
	ModuleID courseapi.ID
	Reason   string
}

func (e *ActionDisabledError) Error() string {
	if e.ModuleID != "" {
		return fmt.Sprintf("progression: %s disabled for module %s: %s", e.Action, e.ModuleID, e.Reason)
	}
	return fmt.Sprintf("progression: %s disabled: %s", e.Action, e.Reason)
}

func (e *ActionDisabledError) Unwrap() error { return ErrActionDisabled }
func (e *ActionDisabledError) Kind() string  { return KindActionDisabled }
