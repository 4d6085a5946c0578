package estimate

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raterudder/payback/pkg/types"
)

type scenarioFile struct {
	Scenarios []types.Scenario `yaml:"scenarios"`
}

// ParseScenarios decodes a YAML document with a top level "scenarios" list.
// Scenarios are validated by Run, not here, but IDs must be unique so
// reports can be told apart.
func ParseScenarios(data []byte) ([]types.Scenario, error) {
	var f scenarioFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse scenarios: %w", err)
	}
	if len(f.Scenarios) == 0 {
		return nil, fmt.Errorf("%w: no scenarios", ErrInvalidScenario)
	}
	seen := make(map[string]bool, len(f.Scenarios))
	for i, s := range f.Scenarios {
		if s.ID == "" {
			continue
		}
		if seen[s.ID] {
			return nil, fmt.Errorf("%w: duplicate id %s at #%d", ErrInvalidScenario, s.ID, i)
		}
		seen[s.ID] = true
	}
	return f.Scenarios, nil
}

// LoadScenarios reads scenarios from a YAML file.
func LoadScenarios(path string) ([]types.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenarios file: %w", err)
	}
	scenarios, err := ParseScenarios(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return scenarios, nil
}
