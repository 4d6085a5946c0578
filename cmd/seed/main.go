package main

import (
	"context"
	"fmt"
	"os"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/payback/pkg/estimate"
	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/storage"
	"github.com/raterudder/payback/pkg/tariff"
)

// seed fills a local emulator catalog with the builtin plans and batteries
// plus any plans from -tariff-plans-file.
func main() {
	os.Setenv("FIRESTORE_EMULATOR_HOST", "127.0.0.1:8087")
	s := storage.Configured()
	file := lflag.String("tariff-plans-file", "", "YAML file with additional tariff plans")
	lflag.Configure()

	ctx := context.Background()
	defer s.Close()

	log.Ctx(ctx).InfoContext(ctx, "seeding catalog")

	plans := tariff.Builtin()
	if *file != "" {
		extra, err := tariff.LoadFile(*file)
		if err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to load plans", "error", err)
			os.Exit(1)
		}
		plans = append(plans, extra...)
	}
	for _, p := range plans {
		if err := s.UpsertPlan(ctx, p); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed plan", "planID", p.ID, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded plan %s (%s)\n", p.ID, p.Name)
	}

	for _, b := range estimate.BuiltinBatteries() {
		if err := s.UpsertBattery(ctx, b); err != nil {
			log.Ctx(ctx).ErrorContext(ctx, "failed to seed battery", "batteryID", b.ID, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Seeded battery %s: %.1f kWh\n", b.ID, b.UsableKWH)
	}

	log.Ctx(ctx).InfoContext(ctx, "seeded catalog successfully")
}
