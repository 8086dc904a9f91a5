package timetable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func validSchedule(t *testing.T) (*Schedule, *Registry) {
	t.Helper()
	subjects := []Subject{
		{Index: 0, Name: "Math", Teachers: 2},
		{Index: 1, Name: "Art", Teachers: 1},
		{Index: 2, Name: "Music", Teachers: 0},
	}
	days, err := PlanDays(2)
	require.NoError(t, err)
	periods, err := PlanPeriods(2, nil, DefaultOptions())
	require.NoError(t, err)
	reg, err := NewRegistry(subjects, len(days), []Constraint{ForbiddenSlot("Art", 1, 0)})
	require.NoError(t, err)
	require.NoError(t, reg.Bind(periods))

	return &Schedule{
		Days:    days,
		Periods: periods,
		Grid: [][]Assignment{
			{ClassAssignment("Math", 0), ClassAssignment("Math", 0)},
			{BreakAssignment("Lunch"), BreakAssignment("Lunch")},
			{ClassAssignment("Art", 0), EmptyAssignment()},
		},
	}, reg
}

func TestValidateAcceptsConsistentSchedule(t *testing.T) {
	schedule, reg := validSchedule(t)
	got, err := Validate(schedule, reg)
	require.NoError(t, err)
	assert.Same(t, schedule, got)
}

func TestValidateRejectsBrokenInvariants(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(s *Schedule)
	}{
		{name: "missing row", mutate: func(s *Schedule) { s.Grid = s.Grid[:2] }},
		{name: "short row", mutate: func(s *Schedule) { s.Grid[0] = s.Grid[0][:1] }},
		{name: "class on break row", mutate: func(s *Schedule) { s.Grid[1][0] = ClassAssignment("Math", 1) }},
		{name: "wrong break label", mutate: func(s *Schedule) { s.Grid[1][1] = BreakAssignment("Recess") }},
		{name: "break on teaching row", mutate: func(s *Schedule) { s.Grid[2][1] = BreakAssignment("Lunch") }},
		{name: "unknown subject", mutate: func(s *Schedule) { s.Grid[2][1] = ClassAssignment("Drama", 0) }},
		{name: "subject without teachers", mutate: func(s *Schedule) { s.Grid[2][1] = ClassAssignment("Music", 0) }},
		{name: "teacher outside pool", mutate: func(s *Schedule) { s.Grid[2][1] = ClassAssignment("Art", 1) }},
		{name: "forbidden slot", mutate: func(s *Schedule) { s.Grid[0][1] = ClassAssignment("Art", 0) }},
		{name: "double booking", mutate: func(s *Schedule) { s.Grid[2][0] = ClassAssignment("Math", 0) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schedule, reg := validSchedule(t)
			tt.mutate(schedule)
			got, err := Validate(schedule, reg)
			require.Error(t, err)
			assert.Nil(t, got)
			assert.True(t, errors.Is(err, appErrors.ErrScheduleInvalid), "got %v", err)
		})
	}
}

func TestValidateNilSchedule(t *testing.T) {
	_, reg := validSchedule(t)
	_, err := Validate(nil, reg)
	assert.True(t, errors.Is(err, appErrors.ErrScheduleInvalid))
}
