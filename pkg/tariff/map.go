package tariff

import (
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/payback/pkg/types"
)

// Configured returns a Map with the builtin plans plus any plans from the
// file given by -tariff-plans-file.
func Configured() *Map {
	m := NewMap()
	file := lflag.String("tariff-plans-file", "", "YAML file with additional tariff plans")

	lflag.Do(func() {
		if *file == "" {
			return
		}
		plans, err := LoadFile(*file)
		if err != nil {
			panic(fmt.Errorf("failed to load tariff plans: %w", err))
		}
		for _, p := range plans {
			if err := m.SetPlan(p); err != nil {
				panic(err)
			}
		}
	})
	return m
}

// Map is a registry of tariffs by plan ID.
type Map struct {
	mu      sync.Mutex
	tariffs map[string]*Tariff
}

// NewMap creates a Map holding the builtin plans.
func NewMap() *Map {
	m := &Map{
		tariffs: make(map[string]*Tariff),
	}
	for _, p := range Builtin() {
		if err := m.SetPlan(p); err != nil {
			panic(fmt.Errorf("builtin plan %s: %w", p.ID, err))
		}
	}
	return m
}

// SetPlan validates the plan and adds or replaces it.
func (m *Map) SetPlan(plan types.TariffPlan) error {
	t, err := New(plan)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tariffs[plan.ID] = t
	return nil
}

// Tariff returns the tariff for the plan ID.
func (m *Map) Tariff(id string) (*Tariff, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tariffs[id]
	return t, ok
}

// List returns every plan sorted by ID.
func (m *Map) List() []types.TariffPlanInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	infos := make([]types.TariffPlanInfo, 0, len(m.tariffs))
	for _, t := range m.tariffs {
		infos = append(infos, types.TariffPlanInfo{
			ID:   t.plan.ID,
			Name: t.plan.Name,
			Kind: t.plan.Kind,
		})
	}
	slices.SortFunc(infos, func(a, b types.TariffPlanInfo) int {
		return strings.Compare(a.ID, b.ID)
	})
	return infos
}
