package sinks

import (
	"context"
	"net/http"
	"testing"

	"github.com/crmbridge/target-salesforce/internal/salesforce"
	tu "github.com/crmbridge/target-salesforce/internal/testing"
)

func taskDescribe() []salesforce.Field {
	fields := []salesforce.Field{{Name: "Id", Type: "id"}}
	for _, name := range []string{
		"Status", "WhoId", "WhatId", "OwnerId", "Subject", "ActivityDate", "Description", "CallDurationInSeconds",
	} {
		fields = append(fields, simpleField(name))
	}
	return fields
}

func TestActivitiesSink(t *testing.T) {
	ctx := context.Background()

	base := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tu.WriteJSON(t, w, tu.DescribeResponse(taskDescribe()...))
	}), nil)
	sink := NewActivitiesSink(base)

	t.Run("maps an activity onto Task", func(t *testing.T) {
		payload, err := sink.Prepare(ctx, map[string]any{
			"type":              "call",
			"status":            "Completed",
			"contact_id":        "003xx0001",
			"related_to":        "001xx0001",
			"activity_datetime": "2024-06-01",
			"start_datetime":    "2024-06-01T10:00:00Z",
			"end_datetime":      "2024-06-01T10:05:30Z",
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}

		if payload.Object != "Task" {
			t.Errorf("expected Task, got %s", payload.Object)
		}
		fields := payload.Fields
		if fields["Subject"] != "call" || fields["WhoId"] != "003xx0001" || fields["WhatId"] != "001xx0001" {
			t.Errorf("unexpected mapping %v", fields)
		}
		if fields["CallDurationInSeconds"] != 330 {
			t.Errorf("expected 330 second call, got %v", fields["CallDurationInSeconds"])
		}
	})

	t.Run("call duration needs both timestamps", func(t *testing.T) {
		payload, err := sink.Prepare(ctx, map[string]any{
			"type":           "call",
			"start_datetime": "2024-06-01T10:00:00Z",
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if _, ok := payload.Fields["CallDurationInSeconds"]; ok {
			t.Error("expected no duration without an end time")
		}
	})
}
