package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/crmbridge/target-salesforce/internal/shared"
	"github.com/crmbridge/target-salesforce/internal/sinks"
	"github.com/urfave/cli/v3"
)

// Realtime upserts raw JSON records for a single stream, bypassing the
// Singer envelope. The input is one record object or an array of them.
func (r *Runner) Realtime(ctx context.Context, cmd *cli.Command) error {
	config, err := r.loadConfig(cmd)
	if err != nil {
		return err
	}

	records, err := r.readRecords(cmd.StringArg("file"))
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("%w: no records in input", shared.ErrInvalidRecord)
	}

	stream := cmd.String("stream")
	client := r.newClient(config)
	base := sinks.NewBaseSink(client, config, r.logger, nil)
	sink := sinks.Resolve(stream, sinks.NewRegistry(base), base)

	results := make([]*sinks.Result, 0, len(records))
	for i, record := range records {
		payload, err := sink.Prepare(ctx, record)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		if payload == nil {
			results = append(results, &sinks.Result{Action: sinks.ActionSkipped})
			continue
		}

		result, err := sink.Write(ctx, payload)
		if err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		results = append(results, result)
	}

	r.logger.Info("realtime write complete", "stream", stream, "records", len(results))
	return r.writeJSON(results, cmd.Bool("pretty"))
}

// readRecords loads one record object or an array of them from path, or
// from the runner's input stream when no path is given.
func (r *Runner) readRecords(path string) ([]map[string]any, error) {
	var source io.Reader = r.input
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		source = f
	}

	data, err := io.ReadAll(source)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var records []map[string]any
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var record map[string]any
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidRecord, err)
	}
	return []map[string]any{record}, nil
}
