package storagemock

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/raterudder/payback/pkg/estimate"
	"github.com/raterudder/payback/pkg/storage"
	"github.com/raterudder/payback/pkg/types"
)

type MockDatabase struct {
	mock.Mock
}

var _ storage.Database = (*MockDatabase)(nil)

func (m *MockDatabase) GetPlan(ctx context.Context, planID string) (types.TariffPlan, error) {
	args := m.Called(ctx, planID)
	if len(args) > 0 {
		return args.Get(0).(types.TariffPlan), args.Error(1)
	}
	return types.TariffPlan{}, nil
}

func (m *MockDatabase) ListPlans(ctx context.Context) ([]types.TariffPlan, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).([]types.TariffPlan), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertPlan(ctx context.Context, plan types.TariffPlan) error {
	args := m.Called(ctx, plan)
	return args.Error(0)
}

func (m *MockDatabase) GetBattery(ctx context.Context, batteryID string) (types.BatteryDevice, error) {
	args := m.Called(ctx, batteryID)
	if len(args) > 0 {
		return args.Get(0).(types.BatteryDevice), args.Error(1)
	}
	return types.BatteryDevice{}, nil
}

func (m *MockDatabase) ListBatteries(ctx context.Context) ([]types.BatteryDevice, error) {
	args := m.Called(ctx)
	if len(args) > 0 {
		return args.Get(0).([]types.BatteryDevice), args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) UpsertBattery(ctx context.Context, battery types.BatteryDevice) error {
	args := m.Called(ctx, battery)
	return args.Error(0)
}

func (m *MockDatabase) InsertReport(ctx context.Context, report *estimate.Report) error {
	args := m.Called(ctx, report)
	return args.Error(0)
}

func (m *MockDatabase) GetReport(ctx context.Context, reportID string) (*estimate.Report, error) {
	args := m.Called(ctx, reportID)
	if len(args) > 0 {
		r, _ := args.Get(0).(*estimate.Report)
		return r, args.Error(1)
	}
	return nil, nil
}

func (m *MockDatabase) Close() error {
	args := m.Called()
	return args.Error(0)
}
