package main

import (
	"context"
	"fmt"

	"github.com/crmbridge/target-salesforce/internal/salesforce"
	"github.com/crmbridge/target-salesforce/internal/shared"
	"github.com/urfave/cli/v3"
)

// AuthTest verifies credentials by refreshing the access token and making
// a cheap authenticated call.
func (r *Runner) AuthTest(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	client := r.newClient(config)
	if err := client.Auth().Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAuthFailed, err)
	}

	objects, err := client.SObjects(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}

	instanceURL, _ := client.Auth().InstanceURL(ctx)
	r.logger.Info("authenticated", "instance", instanceURL, "objects", len(objects))

	r.writePlain("✓ Authentication successful\n")
	r.writePlain("Instance: %s\n", instanceURL)
	r.writePlain("Objects visible: %d\n", len(objects))
	return nil
}

// AuthRefresh forces a token refresh and reports its age.
func (r *Runner) AuthRefresh(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	auth := salesforce.NewAuthenticator(config, r.logger)
	if err := auth.Refresh(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	if age, ok := auth.TokenAge(); ok {
		r.logger.Debugf("token age %v", age)
	}

	if config.Path() != "" {
		r.writePlain("✓ Token refreshed and saved to %s\n", config.Path())
	} else {
		r.writePlain("✓ Token refreshed\n")
	}
	return nil
}
