package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverityString(t *testing.T) {
	testCases := []struct {
		severity Severity
		expected string
	}{
		{SeverityInfo, "info"},
		{SeverityAdvisory, "advisory"},
		{SeverityFatal, "fatal"},
		{Severity(999), "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.severity.String())
		})
	}
}

func TestErrorFormatting(t *testing.T) {
	err := NewSecurityError(ErrCodeControlChar, "bad byte").
		WithComponent("links").
		WithCause(fmt.Errorf("offset 3"))

	msg := err.Error()
	assert.Contains(t, msg, "[ERR_CONTROL_CHAR]")
	assert.Contains(t, msg, "component:links")
	assert.Contains(t, msg, "bad byte")
	assert.Contains(t, msg, "offset 3")
}

func TestSentinelMatching(t *testing.T) {
	t.Run("instances match sentinels by type and code", func(t *testing.T) {
		assert.True(t, errors.Is(ProtocolRelative("//x"), ErrProtocolRelative))
		assert.True(t, errors.Is(ControlChar("a\x01", 1), ErrControlChar))
		assert.True(t, errors.Is(ParseFailed("%zz", nil), ErrParseFailed))
		assert.True(t, errors.Is(MalformedStream(4, "nesting"), ErrMalformedStream))
		assert.True(t, errors.Is(NotImplemented("subprocess isolation"), ErrNotImplemented))
	})

	t.Run("different codes do not match", func(t *testing.T) {
		assert.False(t, errors.Is(ProtocolRelative("//x"), ErrControlChar))
		assert.False(t, errors.Is(ParseFailed("x", nil), ErrMalformedStream))
	})

	t.Run("wrapped errors still match", func(t *testing.T) {
		wrapped := fmt.Errorf("dispatch: %w", ErrReentrancy)
		assert.True(t, errors.Is(wrapped, ErrReentrancy))
	})
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitInternal, ExitCode(errors.New("plain")))
	assert.Equal(t, ExitBaselineMissing, ExitCode(ErrBaselineMissing))
	assert.Equal(t, ExitUnregisteredRenderer, ExitCode(fmt.Errorf("gate: %w", ErrUnregisteredRenderer)))

	wrapped := Wrap(ErrBranchProtectionMissing, ErrorTypeAudit, "ERR_GATE", "gate failed")
	require.NotNil(t, wrapped)
	assert.Equal(t, ExitBranchProtectionMissing, ExitCode(wrapped))
}

func TestWrap(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeIO, "X", "y"))

	base := errors.New("disk full")
	w := WrapIO(base, ErrCodeFileNotFound, "reading baseline")
	assert.Equal(t, ErrorTypeIO, w.Type)
	assert.ErrorIs(t, w, base)
	assert.Equal(t, ErrCodeFileNotFound, Code(w))
	assert.Equal(t, "", Code(base))
}

func TestIsSecurityError(t *testing.T) {
	assert.True(t, IsSecurityError(ControlChar("x", 0)))
	assert.False(t, IsSecurityError(ParseFailed("x", nil)))
	assert.False(t, IsSecurityError(errors.New("plain")))
}
