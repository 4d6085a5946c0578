package tariff

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/raterudder/payback/pkg/types"
)

type planFile struct {
	Plans []types.TariffPlan `yaml:"plans"`
}

// Parse decodes a YAML document with a top level "plans" list and validates
// every plan in it.
func Parse(data []byte) ([]types.TariffPlan, error) {
	var f planFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse plans: %w", err)
	}
	for _, p := range f.Plans {
		if p.ID == "" {
			return nil, fmt.Errorf("%w: plan %q is missing an id", ErrInvalidPlan, p.Name)
		}
		if _, err := New(p); err != nil {
			return nil, err
		}
	}
	return f.Plans, nil
}

// LoadFile reads plans from a YAML file.
func LoadFile(path string) ([]types.TariffPlan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read plans file: %w", err)
	}
	plans, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plans, nil
}
