// Package timetable builds weekly class timetables with a deterministic
// constraint-satisfaction search over a periods × days grid.
//
// The package is pure: it performs no I/O and keeps no package-level mutable
// state, so concurrent Generate calls never interfere with each other.
package timetable

import "fmt"

// Day is one column of the weekly grid.
type Day struct {
	Index int
	Name  string
}

// PeriodKind tags a row as teaching or break.
type PeriodKind int

const (
	PeriodTeaching PeriodKind = iota
	PeriodBreak
)

// Period is one row of the weekly grid.
type Period struct {
	Index int
	Kind  PeriodKind
	Label string
}

// IsBreak reports whether the row is a break.
func (p Period) IsBreak() bool {
	return p.Kind == PeriodBreak
}

// Subject carries the teacher pool size and the weekly occurrence target.
type Subject struct {
	Index    int
	Name     string
	Teachers int
	Target   int
}

// Schedulable reports whether at least one teacher can take the subject.
func (s Subject) Schedulable() bool {
	return s.Teachers > 0
}

// Teacher is identified by its 0-based index inside one subject pool.
type Teacher struct {
	Subject string
	Index   int
}

// Label renders the teacher as shown in grid cells.
func (t Teacher) Label() string {
	return fmt.Sprintf("Teacher %d", t.Index+1)
}

// Slot is a (period, day) coordinate.
type Slot struct {
	Period int
	Day    int
}

// AssignmentKind tags a grid cell.
type AssignmentKind int

const (
	AssignmentEmpty AssignmentKind = iota
	AssignmentBreak
	AssignmentClass
)

// Assignment is the content of one grid cell.
type Assignment struct {
	Kind    AssignmentKind
	Label   string
	Subject string
	Teacher int
}

// EmptyAssignment returns a free cell.
func EmptyAssignment() Assignment {
	return Assignment{Kind: AssignmentEmpty, Teacher: -1}
}

// BreakAssignment returns a cell holding the given break label.
func BreakAssignment(label string) Assignment {
	return Assignment{Kind: AssignmentBreak, Label: label, Teacher: -1}
}

// ClassAssignment returns a cell taught by teacher of subject.
func ClassAssignment(subject string, teacher int) Assignment {
	return Assignment{Kind: AssignmentClass, Subject: subject, Teacher: teacher}
}

// Text renders the cell; ok is false for empty cells.
func (a Assignment) Text() (text string, ok bool) {
	switch a.Kind {
	case AssignmentBreak:
		return a.Label, true
	case AssignmentClass:
		return fmt.Sprintf("%s - %s", a.Subject, Teacher{Subject: a.Subject, Index: a.Teacher}.Label()), true
	default:
		return "", false
	}
}

// ConstraintKind names a structured constraint variant.
type ConstraintKind string

const (
	ConstraintFixedBreak      ConstraintKind = "FIXED_BREAK"
	ConstraintForbiddenSlot   ConstraintKind = "FORBIDDEN_SLOT"
	ConstraintPreferredSlot   ConstraintKind = "PREFERRED_SLOT"
	ConstraintNoDoubleBooking ConstraintKind = "NO_DOUBLE_BOOKING"
)

// Constraint is a tagged variant; which fields are meaningful depends on Kind.
// Period always refers to the row index in the final period sequence.
type Constraint struct {
	Kind    ConstraintKind
	Period  int
	Label   string
	Subject string
	Teacher int
	Day     int
}

// FixedBreak places a break row labelled label at row index period.
func FixedBreak(period int, label string) Constraint {
	return Constraint{Kind: ConstraintFixedBreak, Period: period, Label: label}
}

// ForbiddenSlot keeps subject out of (day, period).
func ForbiddenSlot(subject string, day, period int) Constraint {
	return Constraint{Kind: ConstraintForbiddenSlot, Subject: subject, Day: day, Period: period}
}

// PreferredSlot asks for teacher of subject at (day, period).
func PreferredSlot(subject string, teacher, day, period int) Constraint {
	return Constraint{Kind: ConstraintPreferredSlot, Subject: subject, Teacher: teacher, Day: day, Period: period}
}

// NoDoubleBooking is structural and always active; it is accepted for
// completeness and needs no indexing.
func NoDoubleBooking() Constraint {
	return Constraint{Kind: ConstraintNoDoubleBooking}
}

// Schedule is the immutable generated grid, Grid[period][day].
type Schedule struct {
	Days    []Day
	Periods []Period
	Grid    [][]Assignment
}

// Cell returns the assignment at slot.
func (s *Schedule) Cell(slot Slot) Assignment {
	return s.Grid[slot.Period][slot.Day]
}

// DayNames lists the column headers.
func (s *Schedule) DayNames() []string {
	names := make([]string, len(s.Days))
	for i, day := range s.Days {
		names[i] = day.Name
	}
	return names
}

// PeriodLabels lists the row headers.
func (s *Schedule) PeriodLabels() []string {
	labels := make([]string, len(s.Periods))
	for i, period := range s.Periods {
		labels[i] = period.Label
	}
	return labels
}

// WarningKind classifies non-fatal solver findings.
type WarningKind string

const (
	WarningUnschedulableSubject WarningKind = "UNSCHEDULABLE_SUBJECT"
	WarningPartialAssignment    WarningKind = "PARTIAL_ASSIGNMENT"
)

// Warning is attached to a successful result.
type Warning struct {
	Kind    WarningKind
	Message string
	Subject string
	Slots   []Slot
}

// Stats summarises search effort and the quality metric.
type Stats struct {
	Backtracks    int
	EmptySlots    int
	LoadPenalty   float64
	SpreadPenalty float64
	Score         float64
}

// Result is the successful outcome of Generate.
type Result struct {
	Schedule Schedule
	Subjects []Subject
	Warnings []Warning
	Stats    Stats
}

// HasWarning reports whether a warning of kind is present.
func (r *Result) HasWarning(kind WarningKind) bool {
	for _, w := range r.Warnings {
		if w.Kind == kind {
			return true
		}
	}
	return false
}
