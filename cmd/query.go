package main

import (
	"context"
	"fmt"

	"github.com/crmbridge/target-salesforce/internal/shared"
	"github.com/urfave/cli/v3"
)

// Query executes a SOQL statement and prints the rows.
func (r *Runner) Query(ctx context.Context, cmd *cli.Command) error {
	soql := cmd.StringArg("soql")
	if soql == "" {
		return fmt.Errorf("%w: soql statement", shared.ErrMissingArgument)
	}

	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	client := r.newClient(config)
	rows, err := client.Query(ctx, soql, nil)
	if err != nil {
		return err
	}

	r.logger.Infof("%d row(s)", len(rows))
	return r.writeJSON(rows, cmd.Bool("pretty"))
}
