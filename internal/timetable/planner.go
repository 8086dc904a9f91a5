package timetable

import (
	"fmt"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

const (
	MinWorkingDays   = 1
	MaxWorkingDays   = 7
	MinClassesPerDay = 1
	MaxClassesPerDay = 12

	DefaultBreakLabel = "Lunch"
)

var weekdayNames = [MaxWorkingDays]string{
	"Monday",
	"Tuesday",
	"Wednesday",
	"Thursday",
	"Friday",
	"Saturday",
	"Sunday",
}

// PlanDays returns the canonical weekday sequence starting Monday, truncated
// to workingDays.
func PlanDays(workingDays int) ([]Day, error) {
	if workingDays < MinWorkingDays || workingDays > MaxWorkingDays {
		return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("workingDays must be between %d and %d, got %d", MinWorkingDays, MaxWorkingDays, workingDays))
	}
	days := make([]Day, workingDays)
	for i := range days {
		days[i] = Day{Index: i, Name: weekdayNames[i]}
	}
	return days, nil
}

// PlanPeriods lays out classesPerDay teaching rows and inserts the fixed
// breaks so that each one lands on its requested row index. Teaching labels
// stay sequential around the breaks. When breaks is empty and
// opts.DefaultBreak is set, one break is inserted after period
// ceil(classesPerDay/2).
func PlanPeriods(classesPerDay int, breaks []Constraint, opts Options) ([]Period, error) {
	if classesPerDay < MinClassesPerDay || classesPerDay > MaxClassesPerDay {
		return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("classesPerDay must be between %d and %d, got %d", MinClassesPerDay, MaxClassesPerDay, classesPerDay))
	}

	placed := make([]Constraint, len(breaks))
	copy(placed, breaks)
	if len(placed) == 0 && opts.DefaultBreak && classesPerDay >= 2 {
		label := opts.DefaultBreakLabel
		if label == "" {
			label = DefaultBreakLabel
		}
		placed = append(placed, FixedBreak((classesPerDay+1)/2, label))
	}

	breakAt := make(map[int]string, len(placed))
	for _, b := range placed {
		if b.Kind != ConstraintFixedBreak {
			continue
		}
		if existing, ok := breakAt[b.Period]; ok && existing != b.Label {
			return nil, appErrors.Clone(appErrors.ErrConstraintConflict, fmt.Sprintf("row %d is claimed by breaks %q and %q", b.Period, existing, b.Label))
		}
		breakAt[b.Period] = b.Label
	}

	total := classesPerDay + len(breakAt)
	for _, b := range placed {
		if b.Kind == ConstraintFixedBreak && (b.Period < 0 || b.Period >= total) {
			return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("break %q at row %d is outside the %d-row day", b.Label, b.Period, total))
		}
	}

	periods := make([]Period, 0, total)
	teaching := 0
	for row := 0; row < total; row++ {
		if label, ok := breakAt[row]; ok {
			periods = append(periods, Period{Index: row, Kind: PeriodBreak, Label: label})
			continue
		}
		teaching++
		periods = append(periods, Period{Index: row, Kind: PeriodTeaching, Label: fmt.Sprintf("Period %d", teaching)})
	}
	return periods, nil
}

// TeachingPeriods counts the teaching rows.
func TeachingPeriods(periods []Period) int {
	count := 0
	for _, p := range periods {
		if !p.IsBreak() {
			count++
		}
	}
	return count
}
