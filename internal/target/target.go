// package target orchestrates a run: it consumes Singer messages, routes
// records to their sinks, tracks per-stream outcomes, and emits STATE.
package target

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"
	"github.com/crmbridge/target-salesforce/internal/cache"
	"github.com/crmbridge/target-salesforce/internal/shared"
	"github.com/crmbridge/target-salesforce/internal/singer"
	"github.com/crmbridge/target-salesforce/internal/sinks"
)

// Counters tallies record outcomes for one stream.
type Counters struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// Failure captures one failed record for reporting.
type Failure struct {
	Stream string `json:"stream"`
	Error  string `json:"error"`
}

// Summary is the final accounting of a run.
type Summary struct {
	RunID    string               `json:"run_id"`
	Streams  map[string]*Counters `json:"streams"`
	Failures []Failure            `json:"failures,omitempty"`
}

// Records returns the total number of records seen.
func (s *Summary) Records() int {
	total := 0
	for _, c := range s.Streams {
		total += c.Created + c.Updated + c.Skipped + c.Failed
	}
	return total
}

// Options configure a Target.
type Options struct {
	Base    *sinks.BaseSink
	Logger  *log.Logger
	State   *singer.StateWriter
	Journal *cache.Cache // optional
	DryRun  bool
}

// Target routes a Singer stream into Salesforce sinks.
type Target struct {
	base     *sinks.BaseSink
	registry []sinks.Sink
	resolved map[string]sinks.Sink
	schemas  map[string]json.RawMessage
	logger   *log.Logger
	state    *singer.StateWriter
	journal  *cache.Cache
	dryRun   bool
	runID    string
}

// New creates a Target over the standard sink registry.
func New(opts Options) *Target {
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}

	return &Target{
		base:     opts.Base,
		registry: sinks.NewRegistry(opts.Base),
		resolved: map[string]sinks.Sink{},
		schemas:  map[string]json.RawMessage{},
		logger:   opts.Logger,
		state:    opts.State,
		journal:  opts.Journal,
		dryRun:   opts.DryRun,
		runID:    shared.GenerateID(),
	}
}

// RunID returns the id assigned to this run, used to key journal entries.
func (t *Target) RunID() string { return t.runID }

// Run consumes the stream until EOF and returns the run summary.
//
// Record-level failures are counted and logged without stopping the run;
// quota exhaustion and malformed input abort it. The summary STATE line is
// emitted even when the run aborts, so the runner sees partial progress.
func (t *Target) Run(ctx context.Context, r io.Reader) (*Summary, error) {
	reader := singer.NewReader(r)
	summary := &Summary{RunID: t.runID, Streams: map[string]*Counters{}}

	var runErr error
	for {
		msg, err := reader.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			runErr = err
			break
		}

		switch msg.Type {
		case singer.TypeSchema:
			t.schemas[msg.Stream] = msg.Schema
			t.logger.Debug("schema received", "stream", msg.Stream)

		case singer.TypeRecord:
			if err := t.handleRecord(ctx, msg, summary); err != nil {
				runErr = err
			}

		case singer.TypeState:
			// Tap state passes straight through once preceding records are done.
			if t.state != nil {
				if err := t.state.Write(msg.Value); err != nil {
					runErr = err
				}
			}

		case singer.TypeActivateVersion:
			t.logger.Debug("ignoring ACTIVATE_VERSION", "stream", msg.Stream)
		}

		if runErr != nil {
			break
		}
	}

	if t.state != nil {
		if err := t.state.Write(summaryState(summary)); err != nil && runErr == nil {
			runErr = err
		}
	}
	return summary, runErr
}

// handleRecord runs one record through its sink. Only unrecoverable errors
// (quota, context cancellation) propagate; everything else is tallied.
func (t *Target) handleRecord(ctx context.Context, msg *singer.Message, summary *Summary) error {
	counters := summary.Streams[msg.Stream]
	if counters == nil {
		counters = &Counters{}
		summary.Streams[msg.Stream] = counters
	}

	if _, ok := t.schemas[msg.Stream]; !ok {
		return fmt.Errorf("%w: stream %s", shared.ErrSchemaNotReceived, msg.Stream)
	}

	sink := t.sinkFor(msg.Stream)

	result, err := t.writeRecord(ctx, sink, msg.Record)
	if err != nil {
		if errors.Is(err, shared.ErrQuotaExceeded) || errors.Is(err, context.Canceled) {
			return err
		}

		counters.Failed++
		summary.Failures = append(summary.Failures, Failure{Stream: msg.Stream, Error: err.Error()})
		t.logger.Error("record failed", "stream", msg.Stream, "err", err)
		t.journalEntry(cache.Entry{RunID: t.runID, Stream: msg.Stream, Action: "failed", Error: err.Error()})
		return nil
	}

	switch result.Action {
	case sinks.ActionCreated:
		counters.Created++
	case sinks.ActionUpdated:
		counters.Updated++
	default:
		counters.Skipped++
	}

	t.journalEntry(cache.Entry{
		RunID:  t.runID,
		Stream: msg.Stream,
		Object: result.Object,
		SFID:   result.ID,
		Action: string(result.Action),
	})
	return nil
}

// writeRecord prepares and, outside dry runs, writes a single record.
func (t *Target) writeRecord(ctx context.Context, sink sinks.Sink, record map[string]any) (*sinks.Result, error) {
	payload, err := sink.Prepare(ctx, record)
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return &sinks.Result{Action: sinks.ActionSkipped}, nil
	}

	if t.dryRun {
		t.logger.Info("dry run, not writing", "object", payload.Object, "fields", len(payload.Fields))
		return &sinks.Result{Object: payload.Object, Action: sinks.ActionSkipped}, nil
	}

	return sink.Write(ctx, payload)
}

func (t *Target) sinkFor(stream string) sinks.Sink {
	if sink, ok := t.resolved[stream]; ok {
		return sink
	}
	sink := sinks.Resolve(stream, t.registry, t.base)
	t.resolved[stream] = sink
	return sink
}

func (t *Target) journalEntry(entry cache.Entry) {
	if t.journal == nil {
		return
	}
	if err := t.journal.Record(entry); err != nil {
		t.logger.Debug("journal write failed", "err", err)
	}
}

// summaryState renders the summary as a STATE value.
func summaryState(summary *Summary) map[string]any {
	streams := map[string]any{}
	for name, counters := range summary.Streams {
		streams[name] = map[string]any{
			"created": counters.Created,
			"updated": counters.Updated,
			"skipped": counters.Skipped,
			"failed":  counters.Failed,
		}
	}
	return map[string]any{"run_id": summary.RunID, "summary": streams}
}
