package timetable

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

func registrySubjects() []Subject {
	return []Subject{
		{Index: 0, Name: "Math", Teachers: 2},
		{Index: 1, Name: "Art", Teachers: 1},
	}
}

func TestRegistryLookups(t *testing.T) {
	reg, err := NewRegistry(registrySubjects(), 5, []Constraint{
		NoDoubleBooking(),
		FixedBreak(3, "Lunch"),
		FixedBreak(3, "Lunch"),
		FixedBreak(1, "Recess"),
		ForbiddenSlot("Art", 0, 0),
		ForbiddenSlot("Art", 0, 0),
		PreferredSlot("Math", 1, 2, 4),
		PreferredSlot("Math", 0, 2, 0),
	})
	require.NoError(t, err)

	breaks := reg.Breaks()
	require.Len(t, breaks, 2)
	assert.Equal(t, 1, breaks[0].Period)
	assert.Equal(t, 3, breaks[1].Period)

	assert.True(t, reg.IsForbidden(1, 0, 0))
	assert.False(t, reg.IsForbidden(0, 0, 0))
	assert.False(t, reg.IsForbidden(1, 1, 0))

	pref, ok := reg.Preferred(Slot{Period: 4, Day: 2})
	require.True(t, ok)
	assert.Equal(t, Preference{Slot: Slot{Period: 4, Day: 2}, Subject: 0, Teacher: 1}, pref)
	_, ok = reg.Preferred(Slot{Period: 4, Day: 3})
	assert.False(t, ok)

	day := reg.PreferredOnDay(2)
	require.Len(t, day, 2)
	assert.Equal(t, 0, day[0].Slot.Period)
	assert.Equal(t, 4, day[1].Slot.Period)
	assert.Nil(t, reg.PreferredOnDay(9))
}

func TestRegistryConflicts(t *testing.T) {
	tests := []struct {
		name        string
		constraints []Constraint
		want        *appErrors.Error
	}{
		{
			name:        "two labels on one break row",
			constraints: []Constraint{FixedBreak(2, "Lunch"), FixedBreak(2, "Recess")},
			want:        appErrors.ErrConstraintConflict,
		},
		{
			name:        "preferred and forbidden on one slot",
			constraints: []Constraint{PreferredSlot("Art", 0, 1, 1), ForbiddenSlot("Art", 1, 1)},
			want:        appErrors.ErrConstraintConflict,
		},
		{
			name:        "two teachers preferred on one slot",
			constraints: []Constraint{PreferredSlot("Math", 0, 1, 1), PreferredSlot("Art", 0, 1, 1)},
			want:        appErrors.ErrConstraintConflict,
		},
		{
			name:        "teacher preferred twice on one day",
			constraints: []Constraint{PreferredSlot("Art", 0, 1, 0), PreferredSlot("Art", 0, 1, 2)},
			want:        appErrors.ErrConstraintConflict,
		},
		{
			name:        "unknown subject",
			constraints: []Constraint{ForbiddenSlot("History", 0, 0)},
			want:        appErrors.ErrConfig,
		},
		{
			name:        "day out of range",
			constraints: []Constraint{ForbiddenSlot("Math", 5, 0)},
			want:        appErrors.ErrConfig,
		},
		{
			name:        "teacher outside pool",
			constraints: []Constraint{PreferredSlot("Art", 1, 0, 0)},
			want:        appErrors.ErrConfig,
		},
		{
			name:        "unlabelled break",
			constraints: []Constraint{FixedBreak(1, "")},
			want:        appErrors.ErrConfig,
		},
		{
			name:        "unknown kind",
			constraints: []Constraint{{Kind: "ROOM_LIMIT"}},
			want:        appErrors.ErrConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(registrySubjects(), 5, tt.constraints)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRegistryBind(t *testing.T) {
	periods, err := PlanPeriods(4, nil, DefaultOptions())
	require.NoError(t, err)

	reg, err := NewRegistry(registrySubjects(), 5, []Constraint{PreferredSlot("Math", 0, 0, 2)})
	require.NoError(t, err)
	err = reg.Bind(periods)
	assert.True(t, errors.Is(err, appErrors.ErrConstraintConflict))

	reg, err = NewRegistry(registrySubjects(), 5, []Constraint{ForbiddenSlot("Math", 0, 9)})
	require.NoError(t, err)
	err = reg.Bind(periods)
	assert.True(t, errors.Is(err, appErrors.ErrConfig))

	reg, err = NewRegistry(registrySubjects(), 5, []Constraint{ForbiddenSlot("Math", 0, 2), PreferredSlot("Art", 0, 4, 4)})
	require.NoError(t, err)
	assert.NoError(t, reg.Bind(periods))
}
