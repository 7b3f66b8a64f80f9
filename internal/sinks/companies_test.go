package sinks

import (
	"context"
	"net/http"
	"testing"

	"github.com/crmbridge/target-salesforce/internal/salesforce"
	tu "github.com/crmbridge/target-salesforce/internal/testing"
)

func accountDescribe() []salesforce.Field {
	fields := []salesforce.Field{
		{Name: "Id", Type: "id"},
		{Name: "Type", Type: "picklist", Createable: true, Nillable: true, PicklistValues: []salesforce.PicklistValue{
			{Label: "Customer - Direct", Value: "Customer - Direct", Active: true},
			{Label: "Partner", Value: "Partner", Active: true},
		}},
	}
	for _, name := range []string{
		"Name", "Site", "Industry", "Description", "OwnerId",
		"BillingStreet", "BillingCity", "BillingState", "BillingPostalCode", "BillingCountry",
		"ShippingStreet", "ShippingCity", "ShippingState", "ShippingPostalCode", "ShippingCountry",
		"Phone", "Fax",
	} {
		fields = append(fields, simpleField(name))
	}
	return fields
}

func TestCompaniesSink(t *testing.T) {
	ctx := context.Background()

	base := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tu.WriteJSON(t, w, tu.DescribeResponse(accountDescribe()...))
	}), nil)
	sink := NewCompaniesSink(base)

	t.Run("maps a company onto Account", func(t *testing.T) {
		payload, err := sink.Prepare(ctx, map[string]any{
			"id":       "001xx0001",
			"name":     "Acme",
			"website":  "https://acme.test",
			"industry": "Manufacturing",
			"addresses": []any{
				map[string]any{"line1": "1 Main St", "city": "Portland"},
				map[string]any{"line1": "2 Dock Rd", "city": "Astoria"},
			},
			"phone_numbers": []any{
				map[string]any{"type": "primary", "number": "555-0100"},
				map[string]any{"type": "fax", "number": "555-0199"},
			},
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}

		if payload.Object != "Account" {
			t.Errorf("expected Account, got %s", payload.Object)
		}
		fields := payload.Fields
		if fields["Name"] != "Acme" || fields["Site"] != "https://acme.test" {
			t.Errorf("unexpected mapping %v", fields)
		}
		if fields["Type"] != "Customer - Direct" {
			t.Errorf("expected default account type, got %v", fields["Type"])
		}
		if fields["BillingStreet"] != "1 Main St" || fields["ShippingStreet"] != "2 Dock Rd" {
			t.Errorf("unexpected addresses %v", fields)
		}
		if fields["Phone"] != "555-0100" || fields["Fax"] != "555-0199" {
			t.Errorf("unexpected phones %v", fields)
		}
	})

	t.Run("an external id replaces the record id", func(t *testing.T) {
		payload, err := sink.Prepare(ctx, map[string]any{
			"name":        "Acme",
			"external_id": map[string]any{"name": "AcctID__c", "value": "a-1"},
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if payload.Fields["AcctID__c"] != "a-1" {
			t.Errorf("expected external id, got %v", payload.Fields)
		}
		if _, ok := payload.Fields["Id"]; ok {
			t.Error("expected no Id")
		}
	})
}
