package timetable

import (
	"context"
	"fmt"
	"strings"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// Input is the structured generation request.
type Input struct {
	WorkingDays        int
	ClassesPerDay      int
	Subjects           []string
	TeachersPerSubject []int
	Constraints        []Constraint
}

// Options tunes policy choices that change the output shape or search effort.
type Options struct {
	// DefaultBreak inserts one mid-day break when no FIXED_BREAK is given.
	DefaultBreak      bool
	DefaultBreakLabel string
	// BacktrackBudget caps undo steps; zero means teachingSlots * subjects.
	BacktrackBudget int
}

// DefaultOptions returns the policy used by the API unless configured otherwise.
func DefaultOptions() Options {
	return Options{DefaultBreak: true, DefaultBreakLabel: DefaultBreakLabel}
}

// Generate builds the weekly timetable for in. Fatal errors carry one of the
// pkg/errors timetable codes; non-fatal findings are returned as warnings on
// the result.
func Generate(ctx context.Context, in Input, opts Options) (*Result, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return nil, cancelled(err)
	}

	subjects, err := buildSubjects(in)
	if err != nil {
		return nil, err
	}
	days, err := PlanDays(in.WorkingDays)
	if err != nil {
		return nil, err
	}
	registry, err := NewRegistry(subjects, len(days), in.Constraints)
	if err != nil {
		return nil, err
	}
	periods, err := PlanPeriods(in.ClassesPerDay, registry.Breaks(), opts)
	if err != nil {
		return nil, err
	}
	if err := registry.Bind(periods); err != nil {
		return nil, err
	}

	// registry shares the subjects backing array, so targets are visible to it.
	AssignTargets(subjects, len(days)*TeachingPeriods(periods))

	sv := newSolver(ctx, registry, subjects, days, periods, opts.BacktrackBudget)
	if hasSchedulable(subjects) && !sv.feasible() {
		return nil, appErrors.Clone(appErrors.ErrSolver, "every subject with teachers is forbidden from every teaching slot")
	}
	if err := sv.run(); err != nil {
		return nil, err
	}

	schedule := buildSchedule(days, periods, subjects, sv.assignments())
	if _, err := Validate(&schedule, registry); err != nil {
		return nil, err
	}

	stats := Score(&schedule, subjects)
	stats.Backtracks = sv.backtracks
	return &Result{
		Schedule: schedule,
		Subjects: subjects,
		Warnings: collectWarnings(subjects, sv.unfilled, &schedule),
		Stats:    stats,
	}, nil
}

func buildSubjects(in Input) ([]Subject, error) {
	if in.WorkingDays < MinWorkingDays || in.WorkingDays > MaxWorkingDays {
		return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("workingDays must be between %d and %d, got %d", MinWorkingDays, MaxWorkingDays, in.WorkingDays))
	}
	if in.ClassesPerDay < MinClassesPerDay || in.ClassesPerDay > MaxClassesPerDay {
		return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("classesPerDay must be between %d and %d, got %d", MinClassesPerDay, MaxClassesPerDay, in.ClassesPerDay))
	}
	if len(in.Subjects) == 0 {
		return nil, appErrors.Clone(appErrors.ErrConfig, "at least one subject is required")
	}
	if len(in.Subjects) != len(in.TeachersPerSubject) {
		return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("subjects (%d) and teachersPerSubject (%d) must have the same length", len(in.Subjects), len(in.TeachersPerSubject)))
	}

	seen := make(map[string]bool, len(in.Subjects))
	subjects := make([]Subject, len(in.Subjects))
	for i, name := range in.Subjects {
		if strings.TrimSpace(name) == "" {
			return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("subject %d has an empty name", i+1))
		}
		if seen[name] {
			return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("subject %q is listed twice", name))
		}
		seen[name] = true
		if in.TeachersPerSubject[i] < 0 {
			return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("subject %q has a negative teacher count", name))
		}
		subjects[i] = Subject{Index: i, Name: name, Teachers: in.TeachersPerSubject[i]}
	}
	return subjects, nil
}

// AssignTargets spreads total teaching slots evenly over the subjects that
// have teachers; the remainder goes round-robin in input order. Subjects
// without teachers get a zero target.
func AssignTargets(subjects []Subject, total int) {
	schedulable := 0
	for i := range subjects {
		subjects[i].Target = 0
		if subjects[i].Schedulable() {
			schedulable++
		}
	}
	if schedulable == 0 {
		return
	}
	base, remainder := total/schedulable, total%schedulable
	for i := range subjects {
		if !subjects[i].Schedulable() {
			continue
		}
		subjects[i].Target = base
		if remainder > 0 {
			subjects[i].Target++
			remainder--
		}
	}
}

func hasSchedulable(subjects []Subject) bool {
	for _, subject := range subjects {
		if subject.Schedulable() {
			return true
		}
	}
	return false
}

func buildSchedule(days []Day, periods []Period, subjects []Subject, cells map[Slot]cell) Schedule {
	grid := make([][]Assignment, len(periods))
	for _, period := range periods {
		row := make([]Assignment, len(days))
		for _, day := range days {
			if period.IsBreak() {
				row[day.Index] = BreakAssignment(period.Label)
				continue
			}
			c, ok := cells[Slot{Period: period.Index, Day: day.Index}]
			if !ok || c.subject < 0 {
				row[day.Index] = EmptyAssignment()
				continue
			}
			row[day.Index] = ClassAssignment(subjects[c.subject].Name, c.teacher)
		}
		grid[period.Index] = row
	}
	return Schedule{Days: days, Periods: periods, Grid: grid}
}

func collectWarnings(subjects []Subject, unfilled []Slot, schedule *Schedule) []Warning {
	var warnings []Warning
	for _, subject := range subjects {
		if subject.Schedulable() {
			continue
		}
		warnings = append(warnings, Warning{
			Kind:    WarningUnschedulableSubject,
			Subject: subject.Name,
			Message: fmt.Sprintf("subject %s has no teachers and was not scheduled", subject.Name),
		})
	}
	if !hasSchedulable(subjects) {
		return warnings
	}

	if len(unfilled) > 0 {
		slots := append([]Slot(nil), unfilled...)
		warnings = append(warnings, Warning{
			Kind:    WarningPartialAssignment,
			Message: fmt.Sprintf("%d teaching slots could not be filled", len(slots)),
			Slots:   slots,
		})
	}

	counts := occurrenceCounts(schedule, subjects)
	for _, subject := range subjects {
		if !subject.Schedulable() {
			continue
		}
		got := counts[subject.Index]
		if got >= subject.Target-1 && got <= subject.Target+1 {
			continue
		}
		warnings = append(warnings, Warning{
			Kind:    WarningPartialAssignment,
			Subject: subject.Name,
			Message: fmt.Sprintf("subject %s received %d of %d target slots", subject.Name, got, subject.Target),
		})
	}
	return warnings
}
