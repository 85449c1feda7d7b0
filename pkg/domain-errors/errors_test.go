package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeSchemaViolation, "details invalid")
		assert.True(t, HasCode(err, CodeSchemaViolation))
		assert.False(t, HasCode(err, CodeNotFound))
	})

	t.Run("matches inner code through fmt wrapping", func(t *testing.T) {
		inner := New(CodeInvalidTransition, "journey is cancelled")
		outer := Wrap(fmt.Errorf("apply: %w", inner), CodeInternal, "runner failed")
		assert.True(t, HasCode(outer, CodeInvalidTransition))
		assert.True(t, Is(outer, CodeInternal))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestWithFields(t *testing.T) {
	fields := map[string]string{"date": "must be a date"}
	err := WithFields(CodeSchemaViolation, "details invalid", fields)
	fields["date"] = "mutated"

	got := FieldsOf(err)
	require.NotNil(t, got)
	assert.Equal(t, "must be a date", got["date"])
}

func TestWrapNil(t *testing.T) {
	assert.NoError(t, Wrap(nil, CodeInternal, "nothing"))
}

func TestToHTTPStatus(t *testing.T) {
	cases := map[Code]int{
		CodeUnknownVariant:    http.StatusUnprocessableEntity,
		CodeInvalidTransition: http.StatusConflict,
		CodeNotFound:          http.StatusNotFound,
		CodeBadRequest:        http.StatusBadRequest,
		Code("mystery"):       http.StatusInternalServerError,
	}
	for code, status := range cases {
		assert.Equal(t, status, ToHTTPStatus(code), string(code))
	}
}
