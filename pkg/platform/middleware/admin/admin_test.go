package admin

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"movetrack/pkg/testutil"
)

func TestRequireOpsToken(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	hash, err := HashToken("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := map[string]struct {
		hash   string
		token  string
		status int
	}{
		"matching token": {hash, "s3cret", http.StatusNoContent},
		"wrong token":    {hash, "guess", http.StatusUnauthorized},
		"missing token":  {hash, "", http.StatusUnauthorized},
		"not configured": {"", "s3cret", http.StatusUnauthorized},
		"malformed hash": {"plaintext", "plaintext", http.StatusUnauthorized},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/ops/Move/x/replay", nil)
			if tt.token != "" {
				req.Header.Set(TokenHeader, tt.token)
			}
			rr := testutil.DoRequest(RequireOpsToken(tt.hash, logger)(ok), req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
