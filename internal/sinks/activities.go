package sinks

import (
	"context"

	"github.com/crmbridge/target-salesforce/internal/models"
)

// ActivitiesSink writes unified activities onto Task.
type ActivitiesSink struct {
	*BaseSink
}

func NewActivitiesSink(base *BaseSink) *ActivitiesSink {
	return &ActivitiesSink{BaseSink: base}
}

func (s *ActivitiesSink) Stream() string { return "activities" }

func (s *ActivitiesSink) Aliases() []string { return nil }

func (s *ActivitiesSink) Prepare(ctx context.Context, record map[string]any) (*Payload, error) {
	activity, err := models.Decode[models.Activity](record)
	if err != nil {
		return nil, err
	}

	const object = "Task"

	mapping := map[string]any{
		"Id":           activity.ID,
		"Status":       activity.Status,
		"WhoId":        activity.ContactID,
		"OwnerId":      activity.OwnerID,
		"WhatId":       activity.RelatedTo,
		"Subject":      activity.Type,
		"ActivityDate": activity.ActivityDatetime,
		"Description":  activity.Description,
	}

	if seconds, ok := callDuration(activity.StartDatetime, activity.EndDatetime); ok {
		mapping["CallDurationInSeconds"] = seconds
	}

	if err := s.ApplyCustomFields(ctx, object, mapping, activity.CustomFields); err != nil {
		return nil, err
	}

	fields, err := s.ValidateOutput(ctx, object, mapping)
	if err != nil {
		return nil, err
	}
	return &Payload{Object: object, Fields: fields}, nil
}

// callDuration derives the call length in whole seconds from the activity's
// start and end timestamps.
func callDuration(start, end string) (int, bool) {
	if start == "" || end == "" {
		return 0, false
	}

	startTime, err := ParseDate(start)
	if err != nil {
		return 0, false
	}
	endTime, err := ParseDate(end)
	if err != nil {
		return 0, false
	}

	return int(endTime.Sub(startTime).Seconds()), true
}
