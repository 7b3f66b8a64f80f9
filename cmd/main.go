package main

import (
	"context"
	"errors"
	"os"

	"github.com/crmbridge/target-salesforce/internal/shared"
	"github.com/urfave/cli/v3"
)

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:     "target-salesforce",
		Usage:    "Load Singer-formatted CRM records into Salesforce",
		Version:  "0.3.0",
		Commands: runner.register(),
	}
}

func main() {
	logger := shared.NewLogger(nil)
	app := newApp(NewRunner(RunnerOpts{Logger: logger}))

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrQuotaExceeded) {
			logger.Fatalf("stopped: %v", err)
		}
		logger.Fatalf("application error: %v", err)
	}
}
