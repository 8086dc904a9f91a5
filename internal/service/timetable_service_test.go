package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type memoryCacheRepo struct {
	mu    sync.Mutex
	items map[string][]byte
	ttls  map[string]time.Duration
	fail  error
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{items: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (r *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	raw, ok := r.items[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (r *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail != nil {
		return r.fail
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	r.items[key] = raw
	r.ttls[key] = ttl
	return nil
}

func (r *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = map[string][]byte{}
	return nil
}

func (r *memoryCacheRepo) Ping(ctx context.Context) error { return r.fail }

func intPtr(v int) *int { return &v }

func mathArtRequest() dto.GenerateTimetableRequest {
	return dto.GenerateTimetableRequest{
		WorkingDays:        5,
		ClassesPerDay:      4,
		Subjects:           []string{"Math", "Art"},
		TeachersPerSubject: []int{2, 1},
	}
}

func newTimetableServiceFixture(t *testing.T, generate GenerateFunc, repo CacheRepository) *TimetableService {
	t.Helper()
	metrics := NewMetricsService()
	cache := NewCacheService(repo, metrics, time.Minute, zap.NewNop(), repo != nil)
	return NewTimetableService(generate, cache, metrics, nil, zap.NewNop(), TimetableConfig{
		SolverTimeout:     time.Second,
		DefaultBreak:      true,
		DefaultBreakLabel: "Lunch",
	})
}

func TestTimetableServiceGenerate(t *testing.T) {
	svc := newTimetableServiceFixture(t, nil, nil)

	resp, cached, err := svc.Generate(context.Background(), mathArtRequest())
	require.NoError(t, err)
	assert.False(t, cached)

	assert.Equal(t, []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday"}, resp.Days)
	assert.Equal(t, []string{"Period 1", "Period 2", "Lunch", "Period 3", "Period 4"}, resp.Periods)
	require.Len(t, resp.Schedule, 5)
	for _, cell := range resp.Schedule[2] {
		require.NotNil(t, cell)
		assert.Equal(t, "Lunch", *cell)
	}
	require.NotNil(t, resp.Schedule[0][0])
	assert.Equal(t, "Math - Teacher 1", *resp.Schedule[0][0])

	require.Len(t, resp.Loads, 2)
	assert.Equal(t, dto.SubjectLoad{Subject: "Math", Teachers: 2, Target: 10, Assigned: 10}, resp.Loads[0])
	assert.Equal(t, dto.SubjectLoad{Subject: "Art", Teachers: 1, Target: 10, Assigned: 5}, resp.Loads[1])
	assert.Equal(t, 5, resp.Stats.EmptySlots)

	var kinds []string
	for _, w := range resp.Warnings {
		kinds = append(kinds, w.Type)
	}
	assert.Contains(t, kinds, string(timetable.WarningPartialAssignment))
}

func TestTimetableServiceGenerateIsByteStable(t *testing.T) {
	svc := newTimetableServiceFixture(t, nil, nil)
	req := mathArtRequest()
	req.Constraints = []dto.ConstraintRequest{
		{Type: "FORBIDDEN_SLOT", Subject: "Art", Day: intPtr(0), Period: intPtr(0)},
		{Type: "NO_DOUBLE_BOOKING"},
	}

	first, _, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	second, _, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)

	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	assert.True(t, bytes.Equal(a, b))
}

func TestTimetableServiceRejectsBadRequests(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.GenerateTimetableRequest)
		want   *appErrors.Error
	}{
		{name: "zero working days", mutate: func(r *dto.GenerateTimetableRequest) { r.WorkingDays = 0 }, want: appErrors.ErrConfig},
		{name: "too many classes", mutate: func(r *dto.GenerateTimetableRequest) { r.ClassesPerDay = 13 }, want: appErrors.ErrConfig},
		{name: "length mismatch", mutate: func(r *dto.GenerateTimetableRequest) { r.TeachersPerSubject = []int{2} }, want: appErrors.ErrConfig},
		{name: "empty subject name", mutate: func(r *dto.GenerateTimetableRequest) { r.Subjects = []string{"Math", ""} }, want: appErrors.ErrConfig},
		{name: "unknown constraint type", mutate: func(r *dto.GenerateTimetableRequest) {
			r.Constraints = []dto.ConstraintRequest{{Type: "ROOM_LIMIT"}}
		}, want: appErrors.ErrConfig},
		{name: "break without period", mutate: func(r *dto.GenerateTimetableRequest) {
			r.Constraints = []dto.ConstraintRequest{{Type: "FIXED_BREAK", Label: "Lunch"}}
		}, want: appErrors.ErrConfig},
		{name: "preferred without teacher", mutate: func(r *dto.GenerateTimetableRequest) {
			r.Constraints = []dto.ConstraintRequest{{Type: "PREFERRED_SLOT", Subject: "Math", Day: intPtr(0), Period: intPtr(0)}}
		}, want: appErrors.ErrConfig},
		{name: "conflicting breaks", mutate: func(r *dto.GenerateTimetableRequest) {
			r.Constraints = []dto.ConstraintRequest{
				{Type: "FIXED_BREAK", Period: intPtr(1), Label: "Lunch"},
				{Type: "FIXED_BREAK", Period: intPtr(1), Label: "Recess"},
			}
		}, want: appErrors.ErrConstraintConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTimetableServiceFixture(t, nil, nil)
			req := mathArtRequest()
			tt.mutate(&req)
			resp, _, err := svc.Generate(context.Background(), req)
			require.Error(t, err)
			assert.Nil(t, resp)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestTimetableServiceServesRepeatedRequestsFromCache(t *testing.T) {
	repo := newMemoryCacheRepo()
	calls := 0
	generate := func(ctx context.Context, in timetable.Input, opts timetable.Options) (*timetable.Result, error) {
		calls++
		return timetable.Generate(ctx, in, opts)
	}
	svc := newTimetableServiceFixture(t, generate, repo)

	first, cached, err := svc.Generate(context.Background(), mathArtRequest())
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := svc.Generate(context.Background(), mathArtRequest())
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, 1, calls)
	assert.Equal(t, first, second)
	assert.Len(t, repo.items, 1)
	for _, ttl := range repo.ttls {
		assert.Equal(t, time.Minute, ttl)
	}

	req := mathArtRequest()
	req.ClassesPerDay = 5
	_, cached, err = svc.Generate(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, 2, calls)
}

func TestCacheKey(t *testing.T) {
	in := timetable.Input{WorkingDays: 5, ClassesPerDay: 4, Subjects: []string{"Math", "Art"}, TeachersPerSubject: []int{2, 1}}

	first, err := cacheKey(in, timetable.DefaultOptions())
	require.NoError(t, err)
	again, err := cacheKey(in, timetable.DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, first, again)
	assert.Regexp(t, `^generate:[0-9a-f]{64}$`, first)

	other, err := cacheKey(in, timetable.Options{})
	require.NoError(t, err)
	assert.NotEqual(t, first, other)

	repo := newMemoryCacheRepo()
	svc := newTimetableServiceFixture(t, nil, repo)
	_, _, err = svc.Generate(context.Background(), mathArtRequest())
	require.NoError(t, err)
	require.Len(t, repo.items, 1)
	for key := range repo.items {
		assert.Regexp(t, `^generate:[0-9a-f]{64}$`, key)
	}
}

func TestTimetableServiceToleratesCacheOutage(t *testing.T) {
	repo := newMemoryCacheRepo()
	repo.fail = errors.New("redis: connection refused")
	svc := newTimetableServiceFixture(t, nil, repo)

	resp, cached, err := svc.Generate(context.Background(), mathArtRequest())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.NotNil(t, resp)
}

func TestTimetableServiceAppliesSolverTimeout(t *testing.T) {
	generate := func(ctx context.Context, in timetable.Input, opts timetable.Options) (*timetable.Result, error) {
		<-ctx.Done()
		return nil, appErrors.Wrap(ctx.Err(), appErrors.ErrCancelled.Code, appErrors.ErrCancelled.Status, appErrors.ErrCancelled.Message)
	}
	metrics := NewMetricsService()
	svc := NewTimetableService(generate, nil, metrics, nil, zap.NewNop(), TimetableConfig{SolverTimeout: 10 * time.Millisecond})

	_, _, err := svc.Generate(context.Background(), mathArtRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCancelled))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Equal(t, uint64(1), metrics.Snapshot().Generations["CANCELLED"])
}

func TestTimetableServicePassesPolicyOptions(t *testing.T) {
	var got timetable.Options
	generate := func(ctx context.Context, in timetable.Input, opts timetable.Options) (*timetable.Result, error) {
		got = opts
		return timetable.Generate(ctx, in, opts)
	}
	svc := NewTimetableService(generate, nil, nil, nil, nil, TimetableConfig{BacktrackBudget: 7})

	resp, _, err := svc.Generate(context.Background(), mathArtRequest())
	require.NoError(t, err)
	assert.Equal(t, timetable.Options{BacktrackBudget: 7, DefaultBreakLabel: "Lunch"}, got)
	assert.NotContains(t, resp.Periods, "Lunch")
}

func TestTimetableServiceExport(t *testing.T) {
	svc := newTimetableServiceFixture(t, nil, nil)
	req := dto.GenerateTimetableRequest{
		WorkingDays:        2,
		ClassesPerDay:      2,
		Subjects:           []string{"A", "B"},
		TeachersPerSubject: []int{1, 1},
	}

	file, err := svc.Export(context.Background(), req, "csv")
	require.NoError(t, err)
	assert.Equal(t, "timetable.csv", file.Filename)
	assert.Equal(t, "text/csv", file.ContentType)
	assert.Equal(t, "Period,Monday,Tuesday\n"+
		"Period 1,A - Teacher 1,B - Teacher 1\n"+
		"Lunch,Lunch,Lunch\n"+
		"Period 2,B - Teacher 1,A - Teacher 1\n", string(file.Body))

	file, err = svc.Export(context.Background(), req, "pdf")
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", file.ContentType)
	assert.True(t, bytes.HasPrefix(file.Body, []byte("%PDF-")))

	_, err = svc.Export(context.Background(), req, "xlsx")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}
