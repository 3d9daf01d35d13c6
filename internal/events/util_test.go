package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsHTTPErrorRecoverable(t *testing.T) {
	tests := []struct {
		status      int
		recoverable bool
	}{
		{400, true},
		{408, true},
		{429, true},
		{401, false},
		{403, false},
		{404, false},
		{418, false},
		{500, true},
		{502, true},
		{503, true},
		{200, false}, // success codes are handled separately by the caller; documents the boundary
	}

	for _, tt := range tests {
		assert.Equal(t, tt.recoverable, isHTTPErrorRecoverable(tt.status), "status %d", tt.status)
	}
}

func TestHTTPErrorMessageNotesInvalidKeyOnAuthFailures(t *testing.T) {
	msg := httpErrorMessage(401, "sending events", "")
	assert.Contains(t, msg, "invalid SDK key")
	assert.Contains(t, msg, "401")

	msg = httpErrorMessage(500, "sending events", "will retry")
	assert.NotContains(t, msg, "invalid SDK key")
	assert.Contains(t, msg, "will retry")
}
