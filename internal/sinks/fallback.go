package sinks

import (
	"context"
	"strings"
)

// FallbackSink handles streams without a dedicated sink by matching the
// stream name against the org's sobject names and labels and passing
// whitelisted fields straight through.
type FallbackSink struct {
	*BaseSink
	stream string
	object string // resolved sobject name, cached after first record
	missed bool   // stream definitively has no matching sobject
}

func NewFallbackSink(base *BaseSink, stream string) *FallbackSink {
	return &FallbackSink{BaseSink: base, stream: stream}
}

func (s *FallbackSink) Stream() string { return s.stream }

func (s *FallbackSink) Aliases() []string { return nil }

func (s *FallbackSink) Prepare(ctx context.Context, record map[string]any) (*Payload, error) {
	object, err := s.resolveObject(ctx)
	if err != nil {
		return nil, err
	}
	if object == "" {
		s.logger.Info("skipping record, stream has no matching sobject", "stream", s.stream)
		return nil, nil
	}

	fs, err := s.client.FieldSet(ctx, object)
	if err != nil {
		return nil, err
	}

	mapping := map[string]any{}
	for field, value := range record {
		name := field
		if name == "id" {
			name = "Id"
		}

		meta, known := fs.Field(name)
		if !known && name != "Id" {
			s.logger.Warn("field not found in Salesforce, will not be synced", "field", field, "object", object)
			continue
		}
		if known && !meta.Nillable && value == nil {
			s.logger.Warn("field is not nullable, will not be synced", "field", field)
			continue
		}
		mapping[name] = value
	}

	// Creates need every required field on the record.
	if id, _ := mapping["Id"].(string); id == "" {
		for _, required := range fs.Required {
			if mapping[required] == nil {
				s.logger.Info("skipping record, required field missing", "field", required, "object", object)
				return nil, nil
			}
		}
	}

	fields, err := s.ValidateOutput(ctx, object, mapping)
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		s.logger.Info("skipping record, nothing mapped", "stream", s.stream)
		return nil, nil
	}
	return &Payload{Object: object, Fields: fields}, nil
}

// resolveObject matches the stream name against sobject names and labels.
// The result is cached, including a definitive miss.
func (s *FallbackSink) resolveObject(ctx context.Context) (string, error) {
	if s.object != "" || s.missed {
		return s.object, nil
	}

	objects, err := s.client.SObjects(ctx)
	if err != nil {
		return "", err
	}

	for _, obj := range objects {
		if strings.EqualFold(obj.Name, s.stream) ||
			strings.EqualFold(obj.Label, s.stream) ||
			strings.EqualFold(obj.LabelPlural, s.stream) {
			s.object = obj.Name
			s.logger.Info("using fallback sink", "stream", s.stream, "object", s.object)
			return s.object, nil
		}
	}

	s.missed = true
	return "", nil
}
