package timetable

import (
	"fmt"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// Validate checks a schedule against the registry it was generated for and
// returns it unchanged, or the first violated invariant as SCHEDULE_INVALID.
func Validate(schedule *Schedule, registry *Registry) (*Schedule, error) {
	if schedule == nil {
		return nil, invalid("schedule is nil")
	}
	if len(schedule.Grid) != len(schedule.Periods) {
		return nil, invalid(fmt.Sprintf("grid has %d rows, expected %d periods", len(schedule.Grid), len(schedule.Periods)))
	}
	for p, row := range schedule.Grid {
		if len(row) != len(schedule.Days) {
			return nil, invalid(fmt.Sprintf("row %d has %d cells, expected %d days", p, len(row), len(schedule.Days)))
		}
	}

	subjects := registry.Subjects()
	for p, period := range schedule.Periods {
		for d, a := range schedule.Grid[p] {
			if period.IsBreak() {
				if a.Kind != AssignmentBreak || a.Label != period.Label {
					return nil, invalid(fmt.Sprintf("break row %d (%s) holds a non-break cell on day %d", p, period.Label, d))
				}
				continue
			}
			switch a.Kind {
			case AssignmentEmpty:
				continue
			case AssignmentBreak:
				return nil, invalid(fmt.Sprintf("teaching row %d holds break %q on day %d", p, a.Label, d))
			}
			idx, ok := registry.SubjectIndex(a.Subject)
			if !ok {
				return nil, invalid(fmt.Sprintf("unknown subject %q at row %d day %d", a.Subject, p, d))
			}
			subject := subjects[idx]
			if !subject.Schedulable() {
				return nil, invalid(fmt.Sprintf("subject %s has no teachers but is placed at row %d day %d", subject.Name, p, d))
			}
			if a.Teacher < 0 || a.Teacher >= subject.Teachers {
				return nil, invalid(fmt.Sprintf("subject %s uses teacher %d outside its pool of %d", subject.Name, a.Teacher+1, subject.Teachers))
			}
			if registry.IsForbidden(idx, d, p) {
				return nil, invalid(fmt.Sprintf("subject %s is placed in forbidden slot row %d day %d", subject.Name, p, d))
			}
		}
	}

	for d := range schedule.Days {
		seen := make(map[[2]int]int)
		for p, row := range schedule.Grid {
			a := row[d]
			if a.Kind != AssignmentClass {
				continue
			}
			idx, _ := registry.SubjectIndex(a.Subject)
			key := [2]int{idx, a.Teacher}
			if first, ok := seen[key]; ok {
				return nil, invalid(fmt.Sprintf("%s %s is double-booked on %s (rows %d and %d)", a.Subject, Teacher{Index: a.Teacher}.Label(), schedule.Days[d].Name, first, p))
			}
			seen[key] = p
		}
	}
	return schedule, nil
}

func invalid(message string) error {
	return appErrors.Clone(appErrors.ErrScheduleInvalid, message)
}
