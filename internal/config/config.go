// Package config loads the core's configuration from YAML with
// environment-variable overrides, following the same load-then-override
// shape used across this codebase's services.
package config

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	RuleEngine    RuleEngineConfig    `yaml:"rule_engine"`
	Workflow      WorkflowConfig      `yaml:"workflow"`
	Certification CertificationConfig `yaml:"certification"`
	Coordinator   CoordinatorConfig   `yaml:"coordinator"`
	Adapters      AdaptersConfig      `yaml:"adapters"`
}

type ServerConfig struct {
	Env string `yaml:"env"`
}

// RuleEngineConfig tunes the Rule Engine's evaluation behavior.
type RuleEngineConfig struct {
	// DefaultRuleSetPath names a rule-set document (env GRC_RULE_SET_PATH).
	// Nothing in this module loads it; the embedding process decides
	// whether to read it in place of the built-in seed catalogue.
	DefaultRuleSetPath string `yaml:"default_rule_set_path"`
	EnableWildcards    bool   `yaml:"enable_wildcards"`
}

// WorkflowConfig tunes approval plan generation and SLA sweeping.
type WorkflowConfig struct {
	DefaultSLAHours      int  `yaml:"default_sla_hours"`
	MaxApprovalLevels    int  `yaml:"max_approval_levels"`
	AutoEscalateOnBreach bool `yaml:"auto_escalate_on_breach"`
}

// CertificationConfig tunes campaign generation and reviewer workload.
type CertificationConfig struct {
	DefaultCampaignDays    int   `yaml:"default_campaign_days"`
	ReminderDaysBefore     []int `yaml:"reminder_days_before"`
	AutoRevokeOnTimeout    bool  `yaml:"auto_revoke_on_timeout"`
	RequireCommentsOnRevoke bool `yaml:"require_comments_on_revoke"`
	MaxItemsPerReviewer    int   `yaml:"max_items_per_reviewer"`
}

// CoordinatorConfig tunes request-lifecycle behavior.
type CoordinatorConfig struct {
	RequestLockTimeoutSec int `yaml:"request_lock_timeout_sec"`
}

// AdaptersConfig holds connection settings for the optional
// collaborator adapters (pkg/adapters/...).
type AdaptersConfig struct {
	Redis   RedisConfig   `yaml:"redis"`
	Postgres PostgresConfig `yaml:"postgres"`
	GRPC    GRPCConfig    `yaml:"grpc"`
	SPIFFE  SPIFFEConfig  `yaml:"spiffe"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	CacheTTLSec int `yaml:"cache_ttl_sec"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type GRPCConfig struct {
	ProvisionerAddr string `yaml:"provisioner_addr"`
}

type SPIFFEConfig struct {
	TrustDomain string `yaml:"trust_domain"`
}

var (
	instance     *Config
	instanceOnce sync.Once
)

// Get returns the process-wide configuration singleton, loading it from
// path (or defaults, if path is empty) on first call.
func Get(path string) *Config {
	instanceOnce.Do(func() {
		_ = godotenv.Load()

		cfg := &Config{}
		if path != "" {
			if loaded, err := LoadConfig(path); err == nil {
				cfg = loaded
			}
		}
		cfg.applyEnvOverrides()
		instance = cfg
	})
	return instance
}

// LoadConfig loads config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	c.Server.Env = getEnv("GRC_ENV", c.Server.Env)

	c.RuleEngine.DefaultRuleSetPath = getEnv("GRC_RULE_SET_PATH", c.RuleEngine.DefaultRuleSetPath)

	if v := getEnvInt("GRC_DEFAULT_SLA_HOURS", 0); v > 0 {
		c.Workflow.DefaultSLAHours = v
	}
	if v := getEnvInt("GRC_MAX_APPROVAL_LEVELS", 0); v > 0 {
		c.Workflow.MaxApprovalLevels = v
	}

	if v := getEnvInt("GRC_DEFAULT_CAMPAIGN_DAYS", 0); v > 0 {
		c.Certification.DefaultCampaignDays = v
	}
	if v := getEnvInt("GRC_MAX_ITEMS_PER_REVIEWER", 0); v > 0 {
		c.Certification.MaxItemsPerReviewer = v
	}
	c.Certification.AutoRevokeOnTimeout = getEnvBool("GRC_AUTO_REVOKE_ON_TIMEOUT", c.Certification.AutoRevokeOnTimeout)

	c.Adapters.Redis.Addr = getEnv("GRC_REDIS_ADDR", c.Adapters.Redis.Addr)
	c.Adapters.Postgres.DSN = getEnv("GRC_POSTGRES_DSN", c.Adapters.Postgres.DSN)
	c.Adapters.GRPC.ProvisionerAddr = getEnv("GRC_PROVISIONER_ADDR", c.Adapters.GRPC.ProvisionerAddr)
	c.Adapters.SPIFFE.TrustDomain = getEnv("GRC_SPIFFE_TRUST_DOMAIN", c.Adapters.SPIFFE.TrustDomain)

	c.applyDefaults()
}

func (c *Config) applyDefaults() {
	if c.Server.Env == "" {
		c.Server.Env = "development"
	}
	if c.Workflow.DefaultSLAHours == 0 {
		c.Workflow.DefaultSLAHours = 48
	}
	if c.Workflow.MaxApprovalLevels == 0 {
		c.Workflow.MaxApprovalLevels = 5
	}
	if c.Certification.DefaultCampaignDays == 0 {
		c.Certification.DefaultCampaignDays = 14
	}
	if len(c.Certification.ReminderDaysBefore) == 0 {
		c.Certification.ReminderDaysBefore = []int{7, 3, 1}
	}
	if c.Certification.MaxItemsPerReviewer == 0 {
		c.Certification.MaxItemsPerReviewer = 500
	}
	if c.Coordinator.RequestLockTimeoutSec == 0 {
		c.Coordinator.RequestLockTimeoutSec = 30
	}
	if c.Adapters.Redis.CacheTTLSec == 0 {
		c.Adapters.Redis.CacheTTLSec = 300
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1"
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func splitCSV(s string) []string {
	parts := make([]string, 0)
	for _, p := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}

func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}
