package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "movetrack/pkg/domain-errors"
)

// TestParseID_TrustBoundary validates parsing at API entry points.
//
// Justification: eventable ids arrive in URL paths and relationship fields.
func TestParseID_TrustBoundary(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{"SQL injection attempt", "'; DROP TABLE events;--", true},
		{"Path traversal", "../../../etc/passwd", true},
		{"Oversized input", strings.Repeat("a", 1000), true},
		{"Empty string", "", true},
		{"Nil UUID", uuid.Nil.String(), true},
		{"Whitespace only", "   ", true},
		{"Uppercase valid UUID", "550E8400-E29B-41D4-A716-446655440000", false},
		{"Valid UUID lowercase", "550e8400-e29b-41d4-a716-446655440000", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseEntityID(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestAllIDTypes_ConsistentBehavior(t *testing.T) {
	valid := uuid.New().String()
	parsers := map[string]func(string) error{
		"entity":       func(s string) error { _, err := ParseEntityID(s); return err },
		"event":        func(s string) error { _, err := ParseEventID(s); return err },
		"supplier":     func(s string) error { _, err := ParseSupplierID(s); return err },
		"subscription": func(s string) error { _, err := ParseSubscriptionID(s); return err },
		"notification": func(s string) error { _, err := ParseNotificationID(s); return err },
		"location":     func(s string) error { _, err := ParseLocationID(s); return err },
	}
	for name, parse := range parsers {
		assert.NoError(t, parse(valid), name)
		assert.Error(t, parse("invalid"), name)
		assert.Error(t, parse(uuid.Nil.String()), name)
	}
}

func TestParseKindSegment(t *testing.T) {
	k, err := ParseKindSegment("person_escort_records")
	require.NoError(t, err)
	assert.Equal(t, KindPersonEscortRecord, k)

	_, err = ParseKindSegment("tenants")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))

	_, err = ParseEventableKind("move")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
