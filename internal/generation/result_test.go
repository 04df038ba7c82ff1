package generation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultErr(t *testing.T) {
	assert.NoError(t, Success("ok").Err())

	err := Failure(ReasonEmptyResponse, "no candidates").Err()
	require.Error(t, err)
	assert.Equal(t, ReasonEmptyResponse, ReasonOf(err))
	assert.Equal(t, "empty_response_failure: no candidates", err.Error())
}

func TestReasonOf(t *testing.T) {
	wrapped := fmt.Errorf("relay: %w", &Error{Reason: ReasonConfiguration})
	assert.Equal(t, ReasonConfiguration, ReasonOf(wrapped))
	assert.Equal(t, ReasonTransport, ReasonOf(errors.New("connection refused")))
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, 0.7, s.Temperature)
	assert.Equal(t, 40, s.TopK)
	assert.Equal(t, 0.95, s.TopP)
	assert.Equal(t, 1024, s.MaxOutputTokens)
	require.Len(t, s.Safety, 4)
	for _, ss := range s.Safety {
		assert.Equal(t, BlockMediumAndAbove, ss.Threshold)
	}
}
