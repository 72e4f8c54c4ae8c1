package configs

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBase = `
app:
  http_addr: ":9090"
storage:
  driver: memory
pickup:
  secret_b64url: "c2hhcmVkLXBpY2t1cC1zZWNyZXQtZm9yLWxvY2FsLWRldg"
loyalty:
  milestones:
    - spend_level: "200"
      reward_value: "10"
    - spend_level: "500"
      reward_value: "25"
`

func writeBase(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "base.yaml"), []byte(body), 0o600))
	return dir
}

func TestLoadAppliesDefaultsAndEnvOverlay(t *testing.T) {
	dir := writeBase(t, testBase)
	t.Setenv("ORDERAPI_APP__HTTP_ADDR", ":7070")

	cfg, err := Load(dir, "test")
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.App.HTTPAddr)
	assert.Equal(t, 24*time.Hour, cfg.Pickup.TTL)
	assert.Equal(t, int64(5), cfg.Loyalty.PointsPerOrder)
	assert.Equal(t, uint64(3), cfg.Retry.Attempts)

	ms, err := cfg.Milestones()
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "200", ms[0].SpendLevel.String())
}

func TestLoadEnvFileOverridesBase(t *testing.T) {
	dir := writeBase(t, testBase)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "staging.yaml"), []byte("pickup:\n  ttl: 2h\n"), 0o600))

	cfg, err := Load(dir, "staging")
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, cfg.Pickup.TTL)
}

func TestValidateRejectsDescendingMilestones(t *testing.T) {
	dir := writeBase(t, `
app:
  http_addr: ":9090"
storage:
  driver: memory
pickup:
  secret_b64url: "abc"
loyalty:
  milestones:
    - spend_level: "500"
      reward_value: "25"
    - spend_level: "200"
      reward_value: "10"
`)
	_, err := Load(dir, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ascending")
}

func TestValidateRequiresDSNForSQLDrivers(t *testing.T) {
	dir := writeBase(t, `
app:
  http_addr: ":9090"
storage:
  driver: postgres
pickup:
  secret_b64url: "abc"
`)
	_, err := Load(dir, "test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "storage.dsn")
}
