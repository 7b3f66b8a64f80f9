// package sinks implements the record-to-Salesforce mapping and upsert
// engine. Each sink owns the field-mapping table for one unified stream and
// shares the create-vs-update decision tree on BaseSink.
package sinks

import (
	"context"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/crmbridge/target-salesforce/internal/salesforce"
	"github.com/crmbridge/target-salesforce/internal/shared"
)

// Action describes what a write did with a record.
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionSkipped Action = "skipped"
)

// Result is the outcome of writing one record.
type Result struct {
	ID     string `json:"id,omitempty"`     // Salesforce record id, when known
	Object string `json:"object,omitempty"` // sobject the record landed on
	Action Action `json:"action"`
}

// Payload is a mapped record ready for the upsert tree.
type Payload struct {
	Object string         // target sobject API name
	Fields map[string]any // validated field values

	// After runs once the record is written, with its Salesforce id.
	// Used for side effects like campaign membership assignment.
	After func(ctx context.Context, id string) error
}

// Sink maps one unified stream onto a Salesforce object.
type Sink interface {
	// Stream returns the canonical stream name.
	Stream() string

	// Aliases returns alternate stream names this sink accepts.
	Aliases() []string

	// Prepare translates a raw record into a Payload. A nil Payload with a
	// nil error means the record is skipped.
	Prepare(ctx context.Context, record map[string]any) (*Payload, error)

	// Write runs the upsert decision tree for a prepared payload.
	Write(ctx context.Context, payload *Payload) (*Result, error)
}

// LookupCache caches reference resolutions (account name -> id, contact
// email -> id) across records. Implementations may persist between runs.
type LookupCache interface {
	Get(kind, key string) (string, bool)
	Put(kind, key, id string) error
}

// NewRegistry builds every typed sink over the shared base.
func NewRegistry(base *BaseSink) []Sink {
	return []Sink{
		NewContactsSink(base),
		NewDealsSink(base),
		NewCompaniesSink(base),
		NewCampaignsSink(base),
		NewCampaignMembersSink(base),
		NewActivitiesSink(base),
		NewDonationsSink(base),
	}
}

// Resolve finds the sink for a stream by name or alias. Unknown streams get
// a fallback sink that matches the stream against live sobject metadata.
func Resolve(stream string, registry []Sink, base *BaseSink) Sink {
	needle := strings.ToLower(stream)
	for _, sink := range registry {
		if strings.ToLower(sink.Stream()) == needle {
			return sink
		}
		for _, alias := range sink.Aliases() {
			if strings.ToLower(alias) == needle {
				return sink
			}
		}
	}
	return NewFallbackSink(base, stream)
}

// BaseSink carries the dependencies and behavior shared by every sink.
type BaseSink struct {
	client  *salesforce.Client
	config  *shared.Config
	logger  *log.Logger
	lookups LookupCache
}

// NewBaseSink creates the shared sink base. lookups may be nil.
func NewBaseSink(client *salesforce.Client, config *shared.Config, logger *log.Logger, lookups LookupCache) *BaseSink {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &BaseSink{client: client, config: config, logger: logger, lookups: lookups}
}

// Client exposes the underlying API client for sinks with bespoke calls.
func (b *BaseSink) Client() *salesforce.Client { return b.client }
