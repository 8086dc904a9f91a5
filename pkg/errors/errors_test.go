package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrConfig, "workingDays must be between 1 and 7")
	assert.True(t, errors.Is(err, ErrConfig))
	assert.False(t, errors.Is(err, ErrConstraintConflict))
	assert.Equal(t, "workingDays must be between 1 and 7", err.Error())
	assert.Equal(t, http.StatusBadRequest, err.Status)
}

func TestWrapKeepsCause(t *testing.T) {
	err := Wrap(context.DeadlineExceeded, ErrCancelled.Code, ErrCancelled.Status, "solver timed out")
	assert.True(t, errors.Is(err, ErrCancelled))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, Retryable(fmt.Errorf("job: %w", err)))
	assert.False(t, Retryable(ErrSolver))
}

func TestFromErrorNormalisesPlainErrors(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}
