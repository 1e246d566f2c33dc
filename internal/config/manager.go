package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// OrgUnitsConfig holds per-organizational-unit overrides, keyed by the
// same company-code/department identifiers UserAccess carries. A GRC
// deployment spanning several subsidiaries commonly needs a stricter SLA
// or campaign cadence for one business unit without touching the rest.
type OrgUnitsConfig struct {
	Units map[string]Config `yaml:"units"`
}

// Manager resolves the effective Config for a given organizational unit,
// merging that unit's overrides on top of the global config.
type Manager struct {
	globalConfig *Config
	unitConfigs  map[string]Config
	mu           sync.RWMutex
}

// NewManager loads the master config and the optional org-unit overrides
// file. A missing overrides file is not an error — it just means no unit
// deviates from the global config.
func NewManager(masterPath, orgUnitsPath string) (*Manager, error) {
	master, err := LoadConfig(masterPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(orgUnitsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manager{globalConfig: master, unitConfigs: make(map[string]Config)}, nil
		}
		return nil, err
	}
	defer f.Close()

	var oc OrgUnitsConfig
	if err := yaml.NewDecoder(f).Decode(&oc); err != nil {
		return nil, err
	}

	return &Manager{
		globalConfig: master,
		unitConfigs:  oc.Units,
	}, nil
}

// Get returns the effective config for an organizational unit, applying
// any non-zero override fields on top of a copy of the global config.
func (m *Manager) Get(orgUnit string) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	effective := *m.globalConfig

	override, ok := m.unitConfigs[orgUnit]
	if !ok {
		return &effective
	}

	if override.Workflow.DefaultSLAHours != 0 {
		effective.Workflow.DefaultSLAHours = override.Workflow.DefaultSLAHours
	}
	if override.Workflow.MaxApprovalLevels != 0 {
		effective.Workflow.MaxApprovalLevels = override.Workflow.MaxApprovalLevels
	}
	if override.Workflow.AutoEscalateOnBreach {
		effective.Workflow.AutoEscalateOnBreach = true
	}
	if override.Certification.DefaultCampaignDays != 0 {
		effective.Certification.DefaultCampaignDays = override.Certification.DefaultCampaignDays
	}
	if len(override.Certification.ReminderDaysBefore) > 0 {
		effective.Certification.ReminderDaysBefore = override.Certification.ReminderDaysBefore
	}
	if override.Certification.MaxItemsPerReviewer != 0 {
		effective.Certification.MaxItemsPerReviewer = override.Certification.MaxItemsPerReviewer
	}
	if override.Coordinator.RequestLockTimeoutSec != 0 {
		effective.Coordinator.RequestLockTimeoutSec = override.Coordinator.RequestLockTimeoutSec
	}

	return &effective
}

// Units lists the organizational units carrying an override, for
// diagnostics and admin surfaces built on top of the core.
func (m *Manager) Units() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	units := make([]string, 0, len(m.unitConfigs))
	for u := range m.unitConfigs {
		units = append(units, u)
	}
	return units
}
