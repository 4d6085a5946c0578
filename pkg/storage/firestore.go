package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/levenlabs/go-lflag"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/raterudder/payback/pkg/estimate"
	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/types"
)

const (
	plansCollection     = "plans"
	batteriesCollection = "batteries"
	reportsCollection   = "reports"
)

// FirestoreProvider implements the Database interface using Google Cloud
// Firestore. Every document stores its value as a JSON string in the "json"
// field.
type FirestoreProvider struct {
	client    *firestore.Client
	projectID string
	database  string
}

// configuredFirestore sets up the Firestore provider.
// It registers flags for configuration.
func configuredFirestore() *FirestoreProvider {
	projectID := lflag.String("firestore-project-id", "", "Google Cloud Project ID for Firestore")
	database := lflag.String("firestore-database", "", "Google Cloud Firestore Database")
	emulator := lflag.String("firestore-emulator", "", "Use Firestore emulator")

	f := &FirestoreProvider{}

	lflag.Do(func() {
		f.projectID = *projectID
		f.database = *database

		// set this because that's how firestore client expects it
		if *emulator != "" {
			os.Setenv("FIRESTORE_EMULATOR_HOST", *emulator)
		}
	})

	return f
}

// Validate checks if the provider is properly configured.
func (f *FirestoreProvider) Validate() error {
	if f.projectID == "" && os.Getenv("FIRESTORE_EMULATOR_HOST") != "" {
		return fmt.Errorf("firestore-project-id is required with the emulator")
	}
	return nil
}

// Init initializes the Firestore client.
// This must be called before using the provider methods.
func (f *FirestoreProvider) Init(ctx context.Context) error {
	projectID := f.projectID
	if projectID == "" {
		projectID = firestore.DetectProjectID
	}
	database := f.database
	if database == "" {
		database = firestore.DefaultDatabaseID
	}
	client, err := firestore.NewClientWithDatabase(ctx, projectID, database)
	if err != nil {
		return fmt.Errorf("failed to create firestore client (project=%s, database=%s): %w", projectID, database, err)
	}
	f.client = client
	return nil
}

// Close closes the Firestore client connection.
func (f *FirestoreProvider) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}

func (f *FirestoreProvider) get(ctx context.Context, collection, id string, v any) error {
	if id == "" {
		return fmt.Errorf("%s id cannot be empty", collection)
	}
	doc, err := f.client.Collection(collection).Doc(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("%w: %s %s", ErrNotFound, collection, id)
		}
		return fmt.Errorf("failed to get %s %s: %w", collection, id, err)
	}
	return decodeDoc(ctx, doc, collection, v)
}

func (f *FirestoreProvider) upsert(ctx context.Context, collection, id string, v any, fields map[string]interface{}) error {
	if id == "" {
		return fmt.Errorf("%s id cannot be empty", collection)
	}
	jsonStr, err := encodeDoc(collection, v)
	if err != nil {
		return err
	}
	data := map[string]interface{}{
		"json":      jsonStr,
		"updatedAt": time.Now(),
	}
	for k, val := range fields {
		data[k] = val
	}
	_, err = f.client.Collection(collection).Doc(id).Set(ctx, data, firestore.MergeAll)
	if err != nil {
		return fmt.Errorf("failed to upsert %s %s: %w", collection, id, err)
	}
	return nil
}

// list decodes every document of the collection ordered by ID, skipping
// malformed ones.
func list[T any](ctx context.Context, f *FirestoreProvider, collection string) ([]T, error) {
	iter := f.client.Collection(collection).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []T
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error iterating %s: %w", collection, err)
		}
		var v T
		if err := decodeDoc(ctx, doc, collection, &v); err != nil {
			// Skip malformed documents
			continue
		}
		out = append(out, v)
	}
	return out, nil
}

// GetPlan retrieves a tariff plan from the "plans" collection.
func (f *FirestoreProvider) GetPlan(ctx context.Context, planID string) (types.TariffPlan, error) {
	var p types.TariffPlan
	if err := f.get(ctx, plansCollection, planID, &p); err != nil {
		return types.TariffPlan{}, err
	}
	return p, nil
}

// ListPlans retrieves all stored tariff plans.
func (f *FirestoreProvider) ListPlans(ctx context.Context) ([]types.TariffPlan, error) {
	return list[types.TariffPlan](ctx, f, plansCollection)
}

// UpsertPlan adds or replaces a tariff plan. The plan is not validated here.
func (f *FirestoreProvider) UpsertPlan(ctx context.Context, plan types.TariffPlan) error {
	return f.upsert(ctx, plansCollection, plan.ID, plan, map[string]interface{}{
		"name": plan.Name,
		"kind": string(plan.Kind),
	})
}

// GetBattery retrieves a battery from the "batteries" collection.
func (f *FirestoreProvider) GetBattery(ctx context.Context, batteryID string) (types.BatteryDevice, error) {
	var b types.BatteryDevice
	if err := f.get(ctx, batteriesCollection, batteryID, &b); err != nil {
		return types.BatteryDevice{}, err
	}
	return b, nil
}

// ListBatteries retrieves all stored batteries.
func (f *FirestoreProvider) ListBatteries(ctx context.Context) ([]types.BatteryDevice, error) {
	return list[types.BatteryDevice](ctx, f, batteriesCollection)
}

// UpsertBattery adds or replaces a battery.
func (f *FirestoreProvider) UpsertBattery(ctx context.Context, battery types.BatteryDevice) error {
	return f.upsert(ctx, batteriesCollection, battery.ID, battery, map[string]interface{}{
		"name": battery.Name,
	})
}

// InsertReport creates a report document. Reports are immutable so an
// existing ID is an error.
func (f *FirestoreProvider) InsertReport(ctx context.Context, report *estimate.Report) error {
	if report.ID == "" {
		return fmt.Errorf("report id cannot be empty")
	}
	jsonStr, err := encodeDoc("report", report)
	if err != nil {
		return err
	}
	_, err = f.client.Collection(reportsCollection).Doc(report.ID).Create(ctx, map[string]interface{}{
		"json":       jsonStr,
		"scenarioID": report.ScenarioID,
		"planID":     report.PlanID,
		"createdAt":  report.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to insert report %s: %w", report.ID, err)
	}
	log.Ctx(ctx).DebugContext(ctx, "inserted report", slog.String("reportID", report.ID))
	return nil
}

// GetReport retrieves a saved report.
func (f *FirestoreProvider) GetReport(ctx context.Context, reportID string) (*estimate.Report, error) {
	var r estimate.Report
	if err := f.get(ctx, reportsCollection, reportID, &r); err != nil {
		return nil, err
	}
	return &r, nil
}
