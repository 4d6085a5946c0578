package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/levenlabs/go-lflag"

	"github.com/raterudder/payback/pkg/estimate"
	"github.com/raterudder/payback/pkg/log"
	"github.com/raterudder/payback/pkg/tariff"
)

// estimate runs the scenarios of a YAML file against the builtin catalog and
// prints the reports as JSON.
func main() {
	t := tariff.Configured()
	e := estimate.Configured(t, nil)
	file := lflag.RequiredString("scenarios-file", "YAML file with a top level scenarios list")
	indent := lflag.Bool("indent", true, "Indent the JSON output")

	lflag.Configure()
	if _, err := log.Configure(); err != nil {
		panic(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	scenarios, err := estimate.LoadScenarios(*file)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to load scenarios", "error", err)
		os.Exit(1)
	}

	reports, err := e.Compare(ctx, scenarios)
	if err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to estimate", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	if *indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(reports); err != nil {
		log.Ctx(ctx).ErrorContext(ctx, "failed to write reports", "error", err)
		os.Exit(1)
	}
}
