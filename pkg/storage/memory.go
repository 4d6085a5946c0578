package storage

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/raterudder/payback/pkg/estimate"
	"github.com/raterudder/payback/pkg/types"
)

// MemoryProvider keeps everything in process memory. It is meant for local
// runs and loses its contents on exit.
type MemoryProvider struct {
	mu        sync.RWMutex
	plans     map[string]types.TariffPlan
	batteries map[string]types.BatteryDevice
	reports   map[string]estimate.Report
}

var _ Database = (*MemoryProvider)(nil)

// NewMemory returns an empty MemoryProvider.
func NewMemory() *MemoryProvider {
	return &MemoryProvider{
		plans:     make(map[string]types.TariffPlan),
		batteries: make(map[string]types.BatteryDevice),
		reports:   make(map[string]estimate.Report),
	}
}

func sortedValues[T any](m map[string]T) []T {
	keys := slices.Sorted(maps.Keys(m))
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

func (m *MemoryProvider) GetPlan(ctx context.Context, planID string) (types.TariffPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.plans[planID]
	if !ok {
		return types.TariffPlan{}, fmt.Errorf("%w: plans %s", ErrNotFound, planID)
	}
	return p, nil
}

func (m *MemoryProvider) ListPlans(ctx context.Context) ([]types.TariffPlan, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.plans), nil
}

func (m *MemoryProvider) UpsertPlan(ctx context.Context, plan types.TariffPlan) error {
	if strings.TrimSpace(plan.ID) == "" {
		return fmt.Errorf("plans id cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.plans[plan.ID] = plan
	return nil
}

func (m *MemoryProvider) GetBattery(ctx context.Context, batteryID string) (types.BatteryDevice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.batteries[batteryID]
	if !ok {
		return types.BatteryDevice{}, fmt.Errorf("%w: batteries %s", ErrNotFound, batteryID)
	}
	return b, nil
}

func (m *MemoryProvider) ListBatteries(ctx context.Context) ([]types.BatteryDevice, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sortedValues(m.batteries), nil
}

func (m *MemoryProvider) UpsertBattery(ctx context.Context, battery types.BatteryDevice) error {
	if strings.TrimSpace(battery.ID) == "" {
		return fmt.Errorf("batteries id cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batteries[battery.ID] = battery
	return nil
}

func (m *MemoryProvider) InsertReport(ctx context.Context, report *estimate.Report) error {
	if report.ID == "" {
		return fmt.Errorf("report id cannot be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.reports[report.ID]; ok {
		return fmt.Errorf("report %s already exists", report.ID)
	}
	m.reports[report.ID] = *report
	return nil
}

func (m *MemoryProvider) GetReport(ctx context.Context, reportID string) (*estimate.Report, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.reports[reportID]
	if !ok {
		return nil, fmt.Errorf("%w: reports %s", ErrNotFound, reportID)
	}
	return &r, nil
}

func (m *MemoryProvider) Close() error {
	return nil
}
