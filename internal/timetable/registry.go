package timetable

import (
	"fmt"
	"sort"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// Preference ties one teacher of a subject to a slot.
type Preference struct {
	Slot    Slot
	Subject int
	Teacher int
}

type forbiddenKey struct {
	subject int
	day     int
	period  int
}

// Registry indexes the structured constraints of one generation request.
// It is built once and only read afterwards.
type Registry struct {
	subjectIndex map[string]int
	subjects     []Subject
	workingDays  int

	breaks    []Constraint
	forbidden map[forbiddenKey]struct{}
	order     []forbiddenKey
	preferred map[Slot]Preference
	byDay     [][]Preference
}

// NewRegistry validates and indexes constraints against the subject list.
func NewRegistry(subjects []Subject, workingDays int, constraints []Constraint) (*Registry, error) {
	r := &Registry{
		subjectIndex: make(map[string]int, len(subjects)),
		subjects:     subjects,
		workingDays:  workingDays,
		forbidden:    make(map[forbiddenKey]struct{}),
		preferred:    make(map[Slot]Preference),
		byDay:        make([][]Preference, workingDays),
	}
	for _, subject := range subjects {
		r.subjectIndex[subject.Name] = subject.Index
	}

	breakLabels := make(map[int]string)
	for _, c := range constraints {
		switch c.Kind {
		case ConstraintNoDoubleBooking:
			continue
		case ConstraintFixedBreak:
			if c.Period < 0 {
				return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("break %q has negative row %d", c.Label, c.Period))
			}
			if c.Label == "" {
				return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("break at row %d needs a label", c.Period))
			}
			if existing, ok := breakLabels[c.Period]; ok {
				if existing != c.Label {
					return nil, appErrors.Clone(appErrors.ErrConstraintConflict, fmt.Sprintf("row %d is claimed by breaks %q and %q", c.Period, existing, c.Label))
				}
				continue
			}
			breakLabels[c.Period] = c.Label
			r.breaks = append(r.breaks, c)
		case ConstraintForbiddenSlot:
			subject, err := r.resolve(c)
			if err != nil {
				return nil, err
			}
			key := forbiddenKey{subject: subject, day: c.Day, period: c.Period}
			if _, seen := r.forbidden[key]; !seen {
				r.forbidden[key] = struct{}{}
				r.order = append(r.order, key)
			}
		case ConstraintPreferredSlot:
			subject, err := r.resolve(c)
			if err != nil {
				return nil, err
			}
			if c.Teacher < 0 || c.Teacher >= subjects[subject].Teachers {
				return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("subject %s has no teacher %d", c.Subject, c.Teacher+1))
			}
			slot := Slot{Period: c.Period, Day: c.Day}
			pref := Preference{Slot: slot, Subject: subject, Teacher: c.Teacher}
			if existing, ok := r.preferred[slot]; ok {
				if existing != pref {
					return nil, appErrors.Clone(appErrors.ErrConstraintConflict, fmt.Sprintf("slot (day %d, row %d) is preferred by two different teachers", c.Day, c.Period))
				}
				continue
			}
			r.preferred[slot] = pref
			r.byDay[c.Day] = append(r.byDay[c.Day], pref)
		default:
			return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("unknown constraint kind %q", c.Kind))
		}
	}

	sort.SliceStable(r.breaks, func(i, j int) bool {
		return r.breaks[i].Period < r.breaks[j].Period
	})
	for day := range r.byDay {
		prefs := r.byDay[day]
		sort.SliceStable(prefs, func(i, j int) bool {
			return prefs[i].Slot.Period < prefs[j].Slot.Period
		})
		booked := make(map[[2]int]int, len(prefs))
		for _, pref := range prefs {
			key := [2]int{pref.Subject, pref.Teacher}
			if row, ok := booked[key]; ok {
				return nil, appErrors.Clone(appErrors.ErrConstraintConflict, fmt.Sprintf("%s %s is preferred twice on day %d (rows %d and %d)", subjects[pref.Subject].Name, Teacher{Index: pref.Teacher}.Label(), day, row, pref.Slot.Period))
			}
			booked[key] = pref.Slot.Period
			if r.IsForbidden(pref.Subject, pref.Slot.Day, pref.Slot.Period) {
				return nil, appErrors.Clone(appErrors.ErrConstraintConflict, fmt.Sprintf("subject %s is both preferred and forbidden at (day %d, row %d)", subjects[pref.Subject].Name, pref.Slot.Day, pref.Slot.Period))
			}
		}
	}
	return r, nil
}

func (r *Registry) resolve(c Constraint) (int, error) {
	subject, ok := r.subjectIndex[c.Subject]
	if !ok {
		return 0, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("constraint %s references unknown subject %q", c.Kind, c.Subject))
	}
	if c.Day < 0 || c.Day >= r.workingDays {
		return 0, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("constraint %s day %d is outside 0..%d", c.Kind, c.Day, r.workingDays-1))
	}
	if c.Period < 0 {
		return 0, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("constraint %s has negative row %d", c.Kind, c.Period))
	}
	return subject, nil
}

// Bind checks slot constraints against the planned period sequence.
func (r *Registry) Bind(periods []Period) error {
	for _, key := range r.order {
		if key.period >= len(periods) {
			return appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("forbidden slot row %d is outside the %d-row day", key.period, len(periods)))
		}
	}
	for _, prefs := range r.byDay {
		for _, pref := range prefs {
			if pref.Slot.Period >= len(periods) {
				return appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("preferred slot row %d is outside the %d-row day", pref.Slot.Period, len(periods)))
			}
			if periods[pref.Slot.Period].IsBreak() {
				return appErrors.Clone(appErrors.ErrConstraintConflict, fmt.Sprintf("preferred slot (day %d, row %d) falls on break %q", pref.Slot.Day, pref.Slot.Period, periods[pref.Slot.Period].Label))
			}
		}
	}
	return nil
}

// Breaks returns the fixed breaks ordered by row.
func (r *Registry) Breaks() []Constraint {
	out := make([]Constraint, len(r.breaks))
	copy(out, r.breaks)
	return out
}

// IsForbidden reports whether subject may not be placed at (day, period).
func (r *Registry) IsForbidden(subject, day, period int) bool {
	_, ok := r.forbidden[forbiddenKey{subject: subject, day: day, period: period}]
	return ok
}

// Preferred returns the preference pinned to slot, if any.
func (r *Registry) Preferred(slot Slot) (Preference, bool) {
	pref, ok := r.preferred[slot]
	return pref, ok
}

// PreferredOnDay lists the preferences of one day ordered by row.
func (r *Registry) PreferredOnDay(day int) []Preference {
	if day < 0 || day >= len(r.byDay) {
		return nil
	}
	return r.byDay[day]
}

// SubjectIndex resolves a subject name.
func (r *Registry) SubjectIndex(name string) (int, bool) {
	idx, ok := r.subjectIndex[name]
	return idx, ok
}

// Subjects returns the subjects the registry was built for.
func (r *Registry) Subjects() []Subject {
	return r.subjects
}
