package httputil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "movetrack/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal_error", body["error"])
		assert.NotContains(t, body, "error_description")
	})

	t.Run("uncoded error is internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, assert.AnError)
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), assert.AnError.Error())
	})

	t.Run("schema violation carries fields", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.WithFields(dErrors.CodeSchemaViolation, "details invalid",
			map[string]string{"date": "must be a date"}))

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var body struct {
			Error       string            `json:"error"`
			Description string            `json:"error_description"`
			Fields      map[string]string `json:"fields"`
		}
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "schema_violation", body.Error)
		assert.Equal(t, "details invalid", body.Description)
		assert.Equal(t, "must be a date", body.Fields["date"])
	})
}

func TestDecodeJSON(t *testing.T) {
	var v struct {
		Variant string `json:"variant"`
	}
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"variant":"MoveApprove","extra":1}`))
	err := DecodeJSON(r, &v)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
}
