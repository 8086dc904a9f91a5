package dto

import (
	"time"

	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

// ConstraintRequest is one structured constraint. Which fields apply depends
// on Type; day, period and teacher indices are 0-based and period refers to
// the row in the final day layout, breaks included.
type ConstraintRequest struct {
	Type    string `json:"type" validate:"required,oneof=FIXED_BREAK FORBIDDEN_SLOT PREFERRED_SLOT NO_DOUBLE_BOOKING"`
	Period  *int   `json:"period,omitempty" validate:"omitempty,min=0,max=31"`
	Label   string `json:"label,omitempty" validate:"omitempty,max=64"`
	Subject string `json:"subject,omitempty" validate:"omitempty,max=64"`
	Teacher *int   `json:"teacher,omitempty" validate:"omitempty,min=0"`
	Day     *int   `json:"day,omitempty" validate:"omitempty,min=0,max=6"`
}

// GenerateTimetableRequest describes one weekly timetable to build.
type GenerateTimetableRequest struct {
	WorkingDays        int                 `json:"workingDays" validate:"min=1,max=7"`
	ClassesPerDay      int                 `json:"classesPerDay" validate:"min=1,max=12"`
	Subjects           []string            `json:"subjects" validate:"required,min=1,max=64,dive,required,max=64"`
	TeachersPerSubject []int               `json:"teachersPerSubject" validate:"required,min=1,max=64,dive,min=0,max=64"`
	Constraints        []ConstraintRequest `json:"constraints" validate:"omitempty,max=512,dive"`
}

// ExportQuery selects the download format.
type ExportQuery struct {
	Format string `form:"format" validate:"omitempty,oneof=csv pdf"`
}

// WarningResponse is a non-fatal finding attached to a generated timetable.
type WarningResponse struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	Subject string         `json:"subject,omitempty"`
	Slots   []SlotResponse `json:"slots,omitempty"`
}

// SlotResponse addresses one grid cell.
type SlotResponse struct {
	Day    int `json:"day"`
	Period int `json:"period"`
}

// TimetableStats summarises search effort and quality.
type TimetableStats struct {
	Score         float64 `json:"score"`
	EmptySlots    int     `json:"emptySlots"`
	LoadPenalty   float64 `json:"loadPenalty"`
	SpreadPenalty float64 `json:"spreadPenalty"`
	Backtracks    int     `json:"backtracks"`
}

// SubjectLoad reports the weekly target and the achieved count of a subject.
type SubjectLoad struct {
	Subject  string `json:"subject"`
	Teachers int    `json:"teachers"`
	Target   int    `json:"target"`
	Assigned int    `json:"assigned"`
}

// TimetableResponse is the generated grid: Schedule[period][day] holds null,
// a break label, or "<Subject> - Teacher <n>".
type TimetableResponse struct {
	Days     []string          `json:"days"`
	Periods  []string          `json:"periods"`
	Schedule [][]*string       `json:"schedule"`
	Loads    []SubjectLoad     `json:"loads"`
	Warnings []WarningResponse `json:"warnings"`
	Stats    TimetableStats    `json:"stats"`
}

// TimetableJobResponse reports the state of an asynchronous generation.
type TimetableJobResponse struct {
	JobID      string             `json:"jobId"`
	Status     string             `json:"status"`
	Attempts   int                `json:"attempts"`
	CreatedAt  time.Time          `json:"createdAt"`
	FinishedAt *time.Time         `json:"finishedAt,omitempty"`
	Result     *TimetableResponse `json:"result,omitempty"`
	Error      *appErrors.Error   `json:"error,omitempty"`
}
