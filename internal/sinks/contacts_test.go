package sinks

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/crmbridge/target-salesforce/internal/salesforce"
	tu "github.com/crmbridge/target-salesforce/internal/testing"
)

func simpleField(name string) salesforce.Field {
	return salesforce.Field{Name: name, Type: "string", Createable: true, Nillable: true}
}

func contactDescribe() []salesforce.Field {
	fields := []salesforce.Field{
		{Name: "Id", Type: "id"},
		{Name: "LeadSource", Type: "picklist", Createable: true, Nillable: true, PicklistValues: []salesforce.PicklistValue{
			{Label: "Web", Value: "Web", Active: true},
			{Label: "Referral", Value: "Referral", Active: true},
		}},
	}
	for _, name := range []string{
		"FirstName", "LastName", "Email", "Title", "Description", "Department", "AccountId",
		"MailingStreet", "MailingCity", "MailingState", "MailingPostalCode", "MailingCountry",
		"OtherStreet", "OtherCity", "OtherState", "OtherPostalCode", "OtherCountry",
		"Phone", "OtherPhone", "MobilePhone", "HomePhone", "Birthdate",
	} {
		fields = append(fields, simpleField(name))
	}
	return fields
}

func leadDescribe() []salesforce.Field {
	fields := []salesforce.Field{
		{Name: "Id", Type: "id"},
		{Name: "LeadSource", Type: "picklist", Createable: true, Nillable: true, PicklistValues: []salesforce.PicklistValue{
			{Label: "Web", Value: "Web", Active: true},
		}},
	}
	for _, name := range []string{
		"FirstName", "LastName", "Email", "Company", "Website",
		"Street", "City", "State", "PostalCode", "Country",
		"Phone", "MobilePhone",
	} {
		fields = append(fields, simpleField(name))
	}
	return fields
}

func TestContactsSink(t *testing.T) {
	ctx := context.Background()

	t.Run("maps a contact with addresses and phones", func(t *testing.T) {
		base := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == tu.APIPath("sobjects/Contact/describe"):
				tu.WriteJSON(t, w, tu.DescribeResponse(contactDescribe()...))
			case strings.HasPrefix(r.URL.Path, tu.APIPath("query")):
				soql := r.URL.Query().Get("q")
				if strings.Contains(soql, "FROM Account") {
					tu.WriteJSON(t, w, tu.QueryResponse(map[string]any{"Id": "001xx0007", "Name": "Acme"}))
					return
				}
				tu.WriteJSON(t, w, tu.QueryResponse())
			default:
				t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			}
		}), nil)
		sink := NewContactsSink(base)

		payload, err := sink.Prepare(ctx, map[string]any{
			"id":           "003xx0001",
			"first_name":   "Jane",
			"last_name":    "Doe",
			"email":        "jane@example.com",
			"title":        "CTO",
			"department":   "Engineering",
			"lead_source":  "web",
			"company_name": "Acme",
			"addresses": []any{
				map[string]any{"line1": "1 Main St", "city": "Portland", "state": "OR", "postal_code": "97201", "country": "US"},
				map[string]any{"line1": "9 Side St", "city": "Salem"},
			},
			"phone_numbers": []any{
				map[string]any{"type": "primary", "number": "555-0100"},
				map[string]any{"type": "mobile", "number": "555-0101"},
			},
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}

		if payload.Object != "Contact" {
			t.Errorf("expected Contact, got %s", payload.Object)
		}

		fields := payload.Fields
		if fields["Id"] != "003xx0001" {
			t.Errorf("expected record id to be kept, got %v", fields["Id"])
		}
		if fields["MailingStreet"] != "1 Main St" || fields["MailingCity"] != "Portland" {
			t.Errorf("unexpected mailing address %v", fields)
		}
		if fields["OtherStreet"] != "9 Side St" || fields["OtherCity"] != "Salem" {
			t.Errorf("expected second address on Other fields, got %v", fields)
		}
		if fields["Phone"] != "555-0100" || fields["MobilePhone"] != "555-0101" {
			t.Errorf("unexpected phones %v", fields)
		}
		if fields["LeadSource"] != "Web" {
			t.Errorf("expected picklist-resolved lead source, got %v", fields["LeadSource"])
		}
		if fields["Department"] != "Engineering" {
			t.Errorf("expected Department on contacts, got %v", fields)
		}
		if fields["AccountId"] != "001xx0007" {
			t.Errorf("expected account resolved by name, got %v", fields["AccountId"])
		}
	})

	t.Run("maps a lead onto Lead with bare address fields", func(t *testing.T) {
		base := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case r.URL.Path == tu.APIPath("sobjects/Lead/describe"):
				tu.WriteJSON(t, w, tu.DescribeResponse(leadDescribe()...))
			case strings.HasPrefix(r.URL.Path, tu.APIPath("query")):
				tu.WriteJSON(t, w, tu.QueryResponse())
			default:
				t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			}
		}), nil)
		sink := NewContactsSink(base)

		payload, err := sink.Prepare(ctx, map[string]any{
			"type":         "lead",
			"last_name":    "Doe",
			"email":        "lead@example.com",
			"company_name": "Acme",
			"addresses": []any{
				map[string]any{"line1": "1 Main St", "city": "Portland"},
				map[string]any{"line1": "9 Side St"},
			},
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}

		if payload.Object != "Lead" {
			t.Errorf("expected Lead, got %s", payload.Object)
		}
		if payload.Fields["Street"] != "1 Main St" {
			t.Errorf("expected bare address prefix, got %v", payload.Fields)
		}
		if _, ok := payload.Fields["OtherStreet"]; ok {
			t.Error("expected no second address on leads")
		}
		if payload.Fields["Company"] != "Acme" {
			t.Errorf("expected Company on leads, got %v", payload.Fields)
		}
	})

	t.Run("matches an existing contact by email when no key is given", func(t *testing.T) {
		base := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/describe"):
				tu.WriteJSON(t, w, tu.DescribeResponse(contactDescribe()...))
			case strings.HasPrefix(r.URL.Path, tu.APIPath("query")):
				soql := r.URL.Query().Get("q")
				if strings.Contains(soql, "WHERE Email") {
					tu.WriteJSON(t, w, tu.QueryResponse(map[string]any{"Id": "003xx0055"}))
					return
				}
				tu.WriteJSON(t, w, tu.QueryResponse())
			}
		}), nil)
		sink := NewContactsSink(base)

		payload, err := sink.Prepare(ctx, map[string]any{
			"last_name": "Doe",
			"email":     "jane@example.com",
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if payload.Fields["Id"] != "003xx0055" {
			t.Errorf("expected email match to become the record id, got %v", payload.Fields["Id"])
		}
	})

	t.Run("an external id key skips the email lookup", func(t *testing.T) {
		describe := append(contactDescribe(),
			salesforce.Field{Name: "ExtID__c", Type: "string", Custom: true, Createable: true, Nillable: true, ExternalID: true})

		base := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, tu.APIPath("query")) {
				t.Error("expected no lookup query")
				return
			}
			tu.WriteJSON(t, w, tu.DescribeResponse(describe...))
		}), nil)
		sink := NewContactsSink(base)

		payload, err := sink.Prepare(ctx, map[string]any{
			"last_name":   "Doe",
			"email":       "jane@example.com",
			"external_id": map[string]any{"name": "ExtID__c", "value": "crm-77"},
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if payload.Fields["ExtID__c"] != "crm-77" {
			t.Errorf("expected external id on the payload, got %v", payload.Fields)
		}
	})

	t.Run("assigns campaign membership after the write", func(t *testing.T) {
		var members []map[string]any
		base := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/describe"):
				tu.WriteJSON(t, w, tu.DescribeResponse(contactDescribe()...))
			case strings.HasPrefix(r.URL.Path, tu.APIPath("query")):
				soql := r.URL.Query().Get("q")
				if strings.Contains(soql, "FROM Campaign") {
					tu.WriteJSON(t, w, tu.QueryResponse(map[string]any{"Id": "701xx0001"}))
					return
				}
				tu.WriteJSON(t, w, tu.QueryResponse())
			case r.URL.Path == tu.APIPath("sobjects/CampaignMember"):
				var member map[string]any
				json.NewDecoder(r.Body).Decode(&member)
				members = append(members, member)
				w.Write([]byte(`{"id": "00vxx0001", "success": true}`))
			}
		}), nil)
		sink := NewContactsSink(base)

		payload, err := sink.Prepare(ctx, map[string]any{
			"id":        "003xx0001",
			"last_name": "Doe",
			"campaigns": []any{
				map[string]any{"id": "701xx0009"},
				map[string]any{"name": "Spring Launch"},
			},
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if payload.After == nil {
			t.Fatal("expected an After hook")
		}

		if err := payload.After(ctx, "003xx0001"); err != nil {
			t.Fatalf("After failed: %v", err)
		}

		if len(members) != 2 {
			t.Fatalf("expected 2 memberships, got %d", len(members))
		}
		if members[0]["CampaignId"] != "701xx0009" || members[0]["ContactId"] != "003xx0001" {
			t.Errorf("unexpected first membership %v", members[0])
		}
		if members[1]["CampaignId"] != "701xx0001" {
			t.Errorf("expected name-resolved campaign, got %v", members[1])
		}
	})

	t.Run("tolerates existing campaign membership", func(t *testing.T) {
		base := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/describe"):
				tu.WriteJSON(t, w, tu.DescribeResponse(contactDescribe()...))
			case r.URL.Path == tu.APIPath("sobjects/CampaignMember"):
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`[{"message": "Already a campaign member.", "errorCode": "DUPLICATE_VALUE"}]`))
			}
		}), nil)
		sink := NewContactsSink(base)

		payload, err := sink.Prepare(ctx, map[string]any{
			"id":        "003xx0001",
			"last_name": "Doe",
			"campaigns": []any{map[string]any{"id": "701xx0009"}},
		})
		if err != nil {
			t.Fatalf("Prepare failed: %v", err)
		}
		if err := payload.After(ctx, "003xx0001"); err != nil {
			t.Errorf("expected existing membership to be tolerated, got %v", err)
		}
	})

	t.Run("rejects an invalid record", func(t *testing.T) {
		base := newBase(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tu.WriteJSON(t, w, tu.DescribeResponse(contactDescribe()...))
		}), nil)
		sink := NewContactsSink(base)

		if _, err := sink.Prepare(ctx, map[string]any{"email": "nope"}); err == nil {
			t.Error("expected validation error")
		}
	})
}
