package storage

import (
	"context"
	"errors"

	"github.com/raterudder/payback/pkg/estimate"
	"github.com/raterudder/payback/pkg/types"
)

// ErrNotFound is returned when a plan, battery or report does not exist.
var ErrNotFound = errors.New("not found")

// Database persists the tariff plan and battery catalog and saved reports.
type Database interface {
	// Catalog
	GetPlan(ctx context.Context, planID string) (types.TariffPlan, error)
	ListPlans(ctx context.Context) ([]types.TariffPlan, error)
	UpsertPlan(ctx context.Context, plan types.TariffPlan) error
	GetBattery(ctx context.Context, batteryID string) (types.BatteryDevice, error)
	ListBatteries(ctx context.Context) ([]types.BatteryDevice, error)
	UpsertBattery(ctx context.Context, battery types.BatteryDevice) error

	// Reports
	// InsertReport stores the report under its ID, which must be set.
	InsertReport(ctx context.Context, report *estimate.Report) error
	GetReport(ctx context.Context, reportID string) (*estimate.Report, error)

	// Lifecycle
	Close() error
}

var _ estimate.Catalog = Database(nil)
