package main

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/log"
	"github.com/crmbridge/target-salesforce/internal/report"
	"github.com/crmbridge/target-salesforce/internal/shared"
	"github.com/crmbridge/target-salesforce/internal/singer"
	"github.com/crmbridge/target-salesforce/internal/sinks"
	"github.com/crmbridge/target-salesforce/internal/target"
	"github.com/urfave/cli/v3"
)

// Run consumes Singer messages and loads them into Salesforce.
//
// While a run is active the runner's output stream carries STATE lines and
// nothing else, so every human-facing message goes through the logger.
func (r *Runner) Run(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	level, err := log.ParseLevel(cmd.String("log-level"))
	if err != nil {
		return fmt.Errorf("%w: log-level %q", shared.ErrInvalidFlag, cmd.String("log-level"))
	}
	shared.SetLogLevel(r.logger, level)

	input := r.input
	if path := cmd.String("input"); path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	lookups, err := r.openCache(config)
	if err != nil {
		return err
	}
	if lookups != nil {
		defer lookups.Close()
	}

	var lookupCache sinks.LookupCache
	if lookups != nil {
		lookupCache = lookups
	}

	client := r.newClient(config)
	base := sinks.NewBaseSink(client, config, r.logger, lookupCache)

	tgt := target.New(target.Options{
		Base:    base,
		Logger:  r.logger,
		State:   singer.NewStateWriter(r.output),
		Journal: lookups,
		DryRun:  cmd.Bool("dry-run"),
	})

	r.logger.Info("starting run", "run_id", tgt.RunID(), "dry_run", cmd.Bool("dry-run"))

	summary, runErr := tgt.Run(ctx, input)

	if err := report.WriteText(os.Stderr, summary); err != nil {
		r.logger.Debug("summary render failed", "err", err)
	}

	if path := cmd.String("failures"); path != "" {
		if err := report.SaveFailuresCSV(path, summary); err != nil {
			r.logger.Warnf("failed to save failure report: %v", err)
		} else if len(summary.Failures) > 0 {
			r.logger.Infof("failure report written to %s", path)
		}
	}

	return runErr
}
