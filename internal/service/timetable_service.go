package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// GenerateFunc runs the timetable engine.
type GenerateFunc func(ctx context.Context, in timetable.Input, opts timetable.Options) (*timetable.Result, error)

// Exporter renders a timetable grid into a downloadable document.
type Exporter interface {
	Render(table export.Table) ([]byte, error)
	ContentType() string
	Extension() string
}

// ExportFile is a rendered download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// TimetableConfig governs generation policy and limits.
type TimetableConfig struct {
	SolverTimeout     time.Duration
	BacktrackBudget   int
	DefaultBreak      bool
	DefaultBreakLabel string
	CacheTTL          time.Duration
}

// TimetableService validates requests, runs the engine under a deadline and
// caches results keyed by the normalised request.
type TimetableService struct {
	generate  GenerateFunc
	cache     *CacheService
	metrics   *MetricsService
	exporters map[string]Exporter
	validator *validator.Validate
	logger    *zap.Logger
	cfg       TimetableConfig
}

// NewTimetableService wires the timetable use cases. A nil generate uses the
// built-in engine.
func NewTimetableService(generate GenerateFunc, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg TimetableConfig) *TimetableService {
	if generate == nil {
		generate = timetable.Generate
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SolverTimeout <= 0 {
		cfg.SolverTimeout = 10 * time.Second
	}
	if cfg.DefaultBreakLabel == "" {
		cfg.DefaultBreakLabel = timetable.DefaultBreakLabel
	}
	return &TimetableService{
		generate: generate,
		cache:    cache,
		metrics:  metrics,
		exporters: map[string]Exporter{
			"csv": export.NewCSVExporter(),
			"pdf": export.NewPDFExporter(),
		},
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Prepare validates req and converts it into engine input.
func (s *TimetableService) Prepare(req dto.GenerateTimetableRequest) (timetable.Input, error) {
	if err := s.validator.Struct(req); err != nil {
		return timetable.Input{}, appErrors.Wrap(err, appErrors.ErrConfig.Code, appErrors.ErrConfig.Status, describeValidation(err))
	}
	if len(req.Subjects) != len(req.TeachersPerSubject) {
		return timetable.Input{}, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("subjects (%d) and teachersPerSubject (%d) must have the same length", len(req.Subjects), len(req.TeachersPerSubject)))
	}
	constraints, err := toConstraints(req.Constraints)
	if err != nil {
		return timetable.Input{}, err
	}
	return timetable.Input{
		WorkingDays:        req.WorkingDays,
		ClassesPerDay:      req.ClassesPerDay,
		Subjects:           append([]string(nil), req.Subjects...),
		TeachersPerSubject: append([]int(nil), req.TeachersPerSubject...),
		Constraints:        constraints,
	}, nil
}

// Generate builds the timetable for req. cached reports whether the result
// was served from the cache.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (resp *dto.TimetableResponse, cached bool, err error) {
	in, err := s.Prepare(req)
	if err != nil {
		s.metrics.ObserveGeneration(appErrors.ErrConfig.Code, 0, 0, 0)
		return nil, false, err
	}

	opts := s.options()
	key, keyErr := cacheKey(in, opts)
	if keyErr != nil {
		s.logger.Warn("timetable cache key unavailable, skipping cache", zap.Error(keyErr))
	} else {
		var hit dto.TimetableResponse
		if s.cache.Get(ctx, key, &hit) {
			return &hit, true, nil
		}
	}

	solveCtx, cancel := context.WithTimeout(ctx, s.cfg.SolverTimeout)
	defer cancel()

	start := time.Now()
	result, err := s.generate(solveCtx, in, opts)
	duration := time.Since(start)
	if err != nil {
		appErr := appErrors.FromError(err)
		s.metrics.ObserveGeneration(appErr.Code, duration, 0, 0)
		s.logFailure(appErr, in, duration)
		return nil, false, appErr
	}

	s.metrics.ObserveGeneration(OutcomeOK, duration, result.Stats.Backtracks, result.Stats.EmptySlots)
	s.logger.Info("timetable generated",
		zap.Int("working_days", in.WorkingDays),
		zap.Int("classes_per_day", in.ClassesPerDay),
		zap.Int("subjects", len(in.Subjects)),
		zap.Int("empty_slots", result.Stats.EmptySlots),
		zap.Int("backtracks", result.Stats.Backtracks),
		zap.Int("warnings", len(result.Warnings)),
		zap.Duration("duration", duration),
	)

	resp = toResponse(result)
	if keyErr == nil {
		s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	}
	return resp, false, nil
}

// Export generates the timetable for req and renders it as format.
func (s *TimetableService) Export(ctx context.Context, req dto.GenerateTimetableRequest, format string) (*ExportFile, error) {
	if format == "" {
		format = "csv"
	}
	exporter, ok := s.exporters[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	resp, _, err := s.Generate(ctx, req)
	if err != nil {
		return nil, err
	}

	body, err := exporter.Render(ExportTable(resp))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}
	return &ExportFile{
		Filename:    "timetable." + exporter.Extension(),
		ContentType: exporter.ContentType(),
		Body:        body,
	}, nil
}

// ExportTable lays a timetable out as a header row of days and one row per period.
func ExportTable(resp *dto.TimetableResponse) export.Table {
	headers := append([]string{"Period"}, resp.Days...)
	rows := make([][]string, len(resp.Periods))
	for p, label := range resp.Periods {
		row := make([]string, 0, len(headers))
		row = append(row, label)
		for _, cell := range resp.Schedule[p] {
			if cell == nil {
				row = append(row, "")
				continue
			}
			row = append(row, *cell)
		}
		rows[p] = row
	}
	return export.Table{Title: "Weekly Timetable", Headers: headers, Rows: rows}
}

func (s *TimetableService) options() timetable.Options {
	return timetable.Options{
		DefaultBreak:      s.cfg.DefaultBreak,
		DefaultBreakLabel: s.cfg.DefaultBreakLabel,
		BacktrackBudget:   s.cfg.BacktrackBudget,
	}
}

func (s *TimetableService) logFailure(err *appErrors.Error, in timetable.Input, duration time.Duration) {
	fields := []zap.Field{
		zap.String("code", err.Code),
		zap.String("message", err.Message),
		zap.Int("working_days", in.WorkingDays),
		zap.Int("classes_per_day", in.ClassesPerDay),
		zap.Int("subjects", len(in.Subjects)),
		zap.Duration("duration", duration),
	}
	switch {
	case errors.Is(err, appErrors.ErrScheduleInvalid), errors.Is(err, appErrors.ErrInternal):
		s.logger.Error("timetable engine defect", append(fields, zap.Error(err))...)
	case errors.Is(err, appErrors.ErrCancelled):
		s.logger.Warn("timetable generation cancelled", fields...)
	default:
		s.logger.Info("timetable generation rejected", fields...)
	}
}

func toConstraints(reqs []dto.ConstraintRequest) ([]timetable.Constraint, error) {
	out := make([]timetable.Constraint, 0, len(reqs))
	for i, req := range reqs {
		missing := func(field string) error {
			return appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("constraints[%d] (%s) requires %s", i, req.Type, field))
		}
		switch timetable.ConstraintKind(req.Type) {
		case timetable.ConstraintNoDoubleBooking:
			out = append(out, timetable.NoDoubleBooking())
		case timetable.ConstraintFixedBreak:
			if req.Period == nil {
				return nil, missing("period")
			}
			if req.Label == "" {
				return nil, missing("label")
			}
			out = append(out, timetable.FixedBreak(*req.Period, req.Label))
		case timetable.ConstraintForbiddenSlot:
			if req.Subject == "" {
				return nil, missing("subject")
			}
			if req.Day == nil || req.Period == nil {
				return nil, missing("day and period")
			}
			out = append(out, timetable.ForbiddenSlot(req.Subject, *req.Day, *req.Period))
		case timetable.ConstraintPreferredSlot:
			if req.Subject == "" {
				return nil, missing("subject")
			}
			if req.Teacher == nil || req.Day == nil || req.Period == nil {
				return nil, missing("teacher, day and period")
			}
			out = append(out, timetable.PreferredSlot(req.Subject, *req.Teacher, *req.Day, *req.Period))
		default:
			return nil, appErrors.Clone(appErrors.ErrConfig, fmt.Sprintf("constraints[%d] has unknown type %q", i, req.Type))
		}
	}
	return out, nil
}

func toResponse(result *timetable.Result) *dto.TimetableResponse {
	schedule := result.Schedule
	grid := make([][]*string, len(schedule.Grid))
	assigned := make(map[string]int, len(result.Subjects))
	for p, row := range schedule.Grid {
		cells := make([]*string, len(row))
		for d, a := range row {
			if a.Kind == timetable.AssignmentClass {
				assigned[a.Subject]++
			}
			if text, ok := a.Text(); ok {
				cells[d] = &text
			}
		}
		grid[p] = cells
	}

	loads := make([]dto.SubjectLoad, len(result.Subjects))
	for i, subject := range result.Subjects {
		loads[i] = dto.SubjectLoad{
			Subject:  subject.Name,
			Teachers: subject.Teachers,
			Target:   subject.Target,
			Assigned: assigned[subject.Name],
		}
	}

	warnings := make([]dto.WarningResponse, len(result.Warnings))
	for i, w := range result.Warnings {
		var slots []dto.SlotResponse
		for _, slot := range w.Slots {
			slots = append(slots, dto.SlotResponse{Day: slot.Day, Period: slot.Period})
		}
		warnings[i] = dto.WarningResponse{Type: string(w.Kind), Message: w.Message, Subject: w.Subject, Slots: slots}
	}

	return &dto.TimetableResponse{
		Days:     schedule.DayNames(),
		Periods:  schedule.PeriodLabels(),
		Schedule: grid,
		Loads:    loads,
		Warnings: warnings,
		Stats: dto.TimetableStats{
			Score:         result.Stats.Score,
			EmptySlots:    result.Stats.EmptySlots,
			LoadPenalty:   result.Stats.LoadPenalty,
			SpreadPenalty: result.Stats.SpreadPenalty,
			Backtracks:    result.Stats.Backtracks,
		},
	}
}

// cacheKey hashes the normalised engine input together with the policy options.
func cacheKey(in timetable.Input, opts timetable.Options) (string, error) {
	payload, err := json.Marshal(struct {
		Input   timetable.Input
		Options timetable.Options
	}{in, opts})
	if err != nil {
		return "", fmt.Errorf("encode cache key: %w", err)
	}
	sum := sha256.Sum256(payload)
	return "generate:" + hex.EncodeToString(sum[:]), nil
}

func describeValidation(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return appErrors.ErrConfig.Message
	}
	first := verrs[0]
	if first.Param() != "" {
		return fmt.Sprintf("%s failed %s=%s", first.Namespace(), first.Tag(), first.Param())
	}
	return fmt.Sprintf("%s failed %s", first.Namespace(), first.Tag())
}
