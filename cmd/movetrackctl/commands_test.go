package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	jwttoken "movetrack/internal/jwt_token"
	"movetrack/internal/platform/config"
	id "movetrack/pkg/domain"
	dErrors "movetrack/pkg/domain-errors"
)

func withConfig(t *testing.T, cfg config.Config) {
	t.Helper()
	prev := loadConfig
	loadConfig = func() (config.Config, error) { return cfg, nil }
	t.Cleanup(func() { loadConfig = prev })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := rootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestParseRef(t *testing.T) {
	entityID := uuid.NewString()

	ref, err := parseRef("moves/" + entityID)
	require.NoError(t, err)
	assert.Equal(t, id.KindMove, ref.Kind)
	assert.Equal(t, entityID, ref.ID.String())

	ref, err = parseRef("PersonEscortRecord:" + entityID)
	require.NoError(t, err)
	assert.Equal(t, id.KindPersonEscortRecord, ref.Kind)

	for _, bad := range []string{entityID, "widgets/" + entityID, "Move:not-a-uuid", "Widget:" + entityID} {
		_, err := parseRef(bad)
		assert.Error(t, err, bad)
	}
}

func TestHashToken(t *testing.T) {
	out, err := execute(t, "hash-token", "s3cret")
	require.NoError(t, err)
	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("s3cret")))
}

func TestTokenIssuesValidSupplierToken(t *testing.T) {
	cfg := config.Config{Auth: config.Auth{JWTSigningKey: "k", Issuer: "movetrack", Audience: "suppliers"}}
	withConfig(t, cfg)
	supplier := uuid.NewString()

	out, err := execute(t, "token", "--supplier", supplier, "--subject", "serco", "--ttl", "1h")
	require.NoError(t, err)

	claims, err := jwttoken.NewJWTService("k", "movetrack", "suppliers").ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, supplier, claims.SupplierID)
	assert.Equal(t, "serco", claims.Subject)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, time.Minute)
}

func TestTokenRequiresSupplier(t *testing.T) {
	withConfig(t, config.Config{Auth: config.Auth{JWTSigningKey: "k"}})
	_, err := execute(t, "token")
	assert.Error(t, err)
}

func TestDryRunUnknownEventable(t *testing.T) {
	withConfig(t, config.Config{})
	_, err := execute(t, "dry-run", "moves/"+uuid.NewString())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestExportFeedNeedsBucket(t *testing.T) {
	withConfig(t, config.Config{})
	_, err := execute(t, "export-feed", "moves/"+uuid.NewString())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no export bucket")
}

func TestSeedSubscriptions(t *testing.T) {
	dir := t.TempDir()
	withConfig(t, config.Config{Database: config.Database{Driver: "sqlite", DSN: filepath.Join(dir, "ctl.db")}})

	seed := filepath.Join(dir, "subscriptions.yaml")
	require.NoError(t, os.WriteFile(seed, []byte(`subscriptions:
  - id: `+uuid.NewString()+`
    supplier_id: `+uuid.NewString()+`
    callback_url: https://supplier.example/webhooks
    enabled: true
`), 0o600))

	out, err := execute(t, "seed-subscriptions", seed)
	require.NoError(t, err)
	assert.Equal(t, "seeded 1 subscriptions\n", out)
}
