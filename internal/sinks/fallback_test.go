package sinks

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/crmbridge/target-salesforce/internal/salesforce"
	tu "github.com/crmbridge/target-salesforce/internal/testing"
)

func TestResolve(t *testing.T) {
	registry := NewRegistry(nil)

	cases := []struct {
		stream string
		want   string
	}{
		{"contacts", "contacts"},
		{"Contacts", "contacts"},
		{"customers", "contacts"},
		{"deals", "deals"},
		{"opportunities", "deals"},
		{"companies", "companies"},
		{"campaign_members", "campaignmembers"},
		{"recurring_donations", "recurringdonations"},
	}
	for _, tc := range cases {
		sink := Resolve(tc.stream, registry, nil)
		if sink.Stream() != tc.want {
			t.Errorf("Resolve(%q) = %s, want %s", tc.stream, sink.Stream(), tc.want)
		}
	}

	t.Run("unknown streams get the fallback sink", func(t *testing.T) {
		sink := Resolve("invoices", registry, nil)
		if _, ok := sink.(*FallbackSink); !ok {
			t.Errorf("expected FallbackSink, got %T", sink)
		}
		if sink.Stream() != "invoices" {
			t.Errorf("expected stream to be kept, got %s", sink.Stream())
		}
	})
}

func TestFallbackSink(t *testing.T) {
	ctx := context.Background()

	sobjects := []salesforce.SObject{
		{Name: "Pricebook2", Label: "Price Book", LabelPlural: "Price Books"},
		{Name: "Invoice__c", Label: "Invoice", LabelPlural: "Invoices"},
	}

	invoiceDescribe := []salesforce.Field{
		{Name: "Id", Type: "id"},
		{Name: "Name", Type: "string", Createable: true},
		{Name: "Amount__c", Type: "currency", Custom: true, Createable: true, Nillable: true},
		{Name: "Status__c", Type: "string", Custom: true, Createable: true, Nillable: true},
	}

	newFallback := func(t *testing.T, stream string) *FallbackSink {
		base := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == tu.APIPath("sobjects"):
				tu.WriteJSON(t, w, map[string]any{"sobjects": sobjects})
			case strings.HasSuffix(r.URL.Path, "/describe"):
				tu.WriteJSON(t, w, tu.DescribeResponse(invoiceDescribe...))
			}
		}), nil)
		return NewFallbackSink(base, stream)
	}

	t.Run("matches the stream against object labels", func(t *testing.T) {
		sink := newFallback(t, "invoices")

		payload, err := sink.Prepare(ctx, map[string]any{
			"id":        "a01xx0001",
			"Amount__c": 120.5,
			"NotAField": "dropped",
			"Status__c": "open",
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}

		if payload.Object != "Invoice__c" {
			t.Errorf("expected Invoice__c, got %s", payload.Object)
		}
		if payload.Fields["Id"] != "a01xx0001" {
			t.Errorf("expected id to be renamed, got %v", payload.Fields)
		}
		if _, ok := payload.Fields["NotAField"]; ok {
			t.Error("expected unknown field to be dropped")
		}
	})

	t.Run("creates require every required field", func(t *testing.T) {
		sink := newFallback(t, "invoices")

		// Name is required and missing, no Id: the record is skipped.
		payload, err := sink.Prepare(ctx, map[string]any{"Amount__c": 10})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if payload != nil {
			t.Errorf("expected skip, got %v", payload)
		}
	})

	t.Run("unmatched streams skip every record", func(t *testing.T) {
		sink := newFallback(t, "timesheets")

		payload, err := sink.Prepare(ctx, map[string]any{"anything": 1})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if payload != nil {
			t.Errorf("expected skip, got %v", payload)
		}
	})

	t.Run("non-nillable fields reject nil values", func(t *testing.T) {
		sink := newFallback(t, "invoices")

		payload, err := sink.Prepare(ctx, map[string]any{
			"id":        "a01xx0001",
			"Name":      nil,
			"Status__c": "open",
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if _, ok := payload.Fields["Name"]; ok {
			t.Error("expected nil non-nillable field to be dropped")
		}
	})
}
