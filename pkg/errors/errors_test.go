package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCloneMatchesSentinel(t *testing.T) {
	err := Clone(ErrAttemptNotActive, "attempt already submitted")
	require.True(t, errors.Is(err, ErrAttemptNotActive))
	assert.False(t, errors.Is(err, ErrDeadlineExceeded))
	assert.Equal(t, "attempt already submitted", err.Message)
	assert.Equal(t, "exam attempt is not in progress", ErrAttemptNotActive.Message)
}

func TestWrappedErrorStillMatches(t *testing.T) {
	err := fmt.Errorf("dispatch: %w", Clone(ErrNotFound, "exam not found"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, http.StatusNotFound, FromError(err).Status)
}

func TestFromErrorNormalisesUnknown(t *testing.T) {
	appErr := FromError(errors.New("boom"))
	require.NotNil(t, appErr)
	assert.Equal(t, ErrInternal.Code, appErr.Code)
	assert.Equal(t, http.StatusInternalServerError, appErr.Status)
	assert.Nil(t, FromError(nil))
}

func TestInternalKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := Internal(cause, "failed to load attempt")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "connection reset")
}
