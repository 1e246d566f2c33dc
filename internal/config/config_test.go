package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_MissingFileErrors(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path.yaml")
	require.Error(t, err)
}

func TestApplyEnvOverrides_SetsDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "development", cfg.Server.Env)
	assert.Equal(t, 48, cfg.Workflow.DefaultSLAHours)
	assert.Equal(t, 14, cfg.Certification.DefaultCampaignDays)
	assert.Equal(t, []int{7, 3, 1}, cfg.Certification.ReminderDaysBefore)
	assert.Equal(t, 500, cfg.Certification.MaxItemsPerReviewer)
}

func TestApplyEnvOverrides_EnvTakesPrecedence(t *testing.T) {
	t.Setenv("GRC_ENV", "production")
	t.Setenv("GRC_MAX_APPROVAL_LEVELS", "9")

	cfg := &Config{}
	cfg.applyEnvOverrides()

	assert.Equal(t, "production", cfg.Server.Env)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 9, cfg.Workflow.MaxApprovalLevels)
}

func TestGetEnvBool(t *testing.T) {
	t.Setenv("GRC_TEST_BOOL", "1")
	assert.True(t, getEnvBool("GRC_TEST_BOOL", false))
	assert.False(t, getEnvBool("GRC_TEST_BOOL_UNSET", false))
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, splitCSV("a, b ,c"))
	assert.Equal(t, []string{}, splitCSV(""))
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
