// Package stage is the fixed catalog of production stages a job moves
// through. Order is the display order; nothing here enforces progression.
package stage

import (
	"errors"
	"fmt"
)

// Group is the production phase a stage belongs to.
type Group string

const (
	GroupPrePress  Group = "Pre-Press"
	GroupPress     Group = "Press"
	GroupPostPress Group = "Post-Press"
)

// Stage codes, in workflow order.
const (
	Design         = "PRE_DESIGN"
	Printing       = "PRESS_PRINTING"
	Lamination     = "POST_LAMINATION"
	DieCut         = "POST_DIECUT"
	Guillotine     = "POST_GUILLOTINE"
	Binding        = "POST_BINDING"
	Packing        = "POST_PACKING"
	OutForDelivery = "POST_OUT_FOR_DELIVERY"
	Delivered      = "POST_DELIVERED"
)

// ErrUnknownStage is returned by Check for codes outside the catalog.
var ErrUnknownStage = errors.New("stage: unknown stage")

// Stage is one catalog entry.
type Stage struct {
	Code  string `json:"code"`
	Label string `json:"label"`
	Group Group  `json:"group"`
}

var catalog = []Stage{
	{Design, "Pre-Press: Designing", GroupPrePress},
	{Printing, "Press: Printing", GroupPress},
	{Lamination, "Post-Press: Lamination", GroupPostPress},
	{DieCut, "Post-Press: Die cutting", GroupPostPress},
	{Guillotine, "Post-Press: Guillotine", GroupPostPress},
	{Binding, "Post-Press: Binding", GroupPostPress},
	{Packing, "Post-Press: Packing", GroupPostPress},
	{OutForDelivery, "Post-Press: Out for delivery", GroupPostPress},
	{Delivered, "Post-Press: Delivered", GroupPostPress},
}

// All returns the catalog in workflow order. The slice is a copy.
func All() []Stage {
	out := make([]Stage, len(catalog))
	copy(out, catalog)
	return out
}

// First returns the stage new jobs start in.
func First() string {
	return catalog[0].Code
}

// LabelFor returns the display label for code. ok is false for codes
// outside the catalog.
func LabelFor(code string) (label string, ok bool) {
	for _, s := range catalog {
		if s.Code == code {
			return s.Label, true
		}
	}
	return "", false
}

// DisplayLabel returns the label for code, falling back to the raw code.
func DisplayLabel(code string) string {
	if label, ok := LabelFor(code); ok {
		return label
	}
	return code
}

// Known reports whether code is in the catalog.
func Known(code string) bool {
	_, ok := LabelFor(code)
	return ok
}

// Index returns the position of code in the workflow, or -1.
func Index(code string) int {
	for i, s := range catalog {
		if s.Code == code {
			return i
		}
	}
	return -1
}

// Check returns ErrUnknownStage for codes outside the catalog.
func Check(code string) error {
	if !Known(code) {
		return fmt.Errorf("%w: %q", ErrUnknownStage, code)
	}
	return nil
}
