package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"gpio_control_server/config"
	"gpio_control_server/internal/db"
	"gpio_control_server/internal/devices"
	"gpio_control_server/internal/faults"
	"gpio_control_server/internal/store"
	"gpio_control_server/pkg/logger"
)

// pin-audit re-validates every stored device against all others and prints
// the header pin map. It exits non-zero when any device fails validation.
func main() {
	showMap := flag.Bool("map", true, "Print the pin map")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration:", err)
		os.Exit(2)
	}
	log := logger.NewLogger(cfg.Logging)

	if cfg.Database.Driver != "postgres" {
		log.Error("pin-audit needs DB_DRIVER=postgres, the memory store has nothing to audit")
		os.Exit(2)
	}
	if err := db.Initialize(cfg.Database, log); err != nil {
		log.FatalWithError(err, "Database initialization failed")
	}
	defer db.Close()

	catalog, err := devices.DefaultCatalog()
	if err != nil {
		log.FatalWithError(err, "Device catalog is malformed")
	}
	svc := devices.NewService(store.NewGormStore(db.GetDB()), catalog, log)
	ctx := context.Background()

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if *showMap {
		claims, err := svc.PinMap(ctx)
		if err != nil {
			log.FatalWithError(err, "Failed to load pin map")
		}
		fmt.Fprintln(w, "PIN\tBCM\tDEVICE\tSLOT")
		for _, c := range claims {
			bcm, _ := c.Pin.BCM()
			fmt.Fprintf(w, "%d\t%d\t%s #%d %s\t%s\n", c.Pin, bcm, c.Kind, c.ID, c.Owner, c.Slot)
		}
		fmt.Fprintln(w)
	}

	results, err := svc.Audit(ctx)
	if err != nil {
		log.FatalWithError(err, "Audit failed")
	}
	failed := 0
	fmt.Fprintln(w, "DEVICE\tRESULT")
	for _, r := range results {
		if r.Err == nil {
			fmt.Fprintf(w, "%s #%d %s\tok\n", r.Kind, r.ID, r.Name)
			continue
		}
		failed++
		if f, ok := faults.As(r.Err); ok && f.Kind == faults.Validation {
			for field, msgs := range f.FieldMap() {
				for _, m := range msgs {
					fmt.Fprintf(w, "%s #%d %s\t%s: %s\n", r.Kind, r.ID, r.Name, field, m)
				}
			}
			continue
		}
		fmt.Fprintf(w, "%s #%d %s\t%v\n", r.Kind, r.ID, r.Name, r.Err)
	}
	w.Flush()

	if failed > 0 {
		log.Logger.Error().Int("failed", failed).Int("devices", len(results)).Msg("pin audit found invalid devices")
		os.Exit(1)
	}
	log.Logger.Info().Int("devices", len(results)).Msg("pin audit passed")
}
