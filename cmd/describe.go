package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// Describe prints field metadata for an object, or lists all objects when
// no object name is given.
func (r *Runner) Describe(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	client := r.newClient(config)
	object := cmd.StringArg("object")
	pretty := cmd.Bool("pretty")

	if object == "" {
		objects, err := client.SObjects(ctx)
		if err != nil {
			return err
		}
		return r.writeJSON(objects, pretty)
	}

	if cmd.Bool("writable") {
		fieldSet, err := client.FieldSet(ctx, object)
		if err != nil {
			return err
		}
		return r.writeJSON(map[string]any{
			"object":       object,
			"createable":   fieldSet.Createable,
			"custom":       fieldSet.Custom,
			"required":     fieldSet.Required,
			"external_ids": fieldSet.ExternalIDs,
		}, pretty)
	}

	fields, err := client.Describe(ctx, object)
	if err != nil {
		return err
	}
	return r.writeJSON(fields, pretty)
}
