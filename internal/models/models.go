// package models defines the unified CRM record types accepted on the input
// stream, mirroring the hotglue unified CRM schema.
package models

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/crmbridge/target-salesforce/internal/shared"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ExternalID names an external-id field on the Salesforce object and the
// value to upsert against.
type ExternalID struct {
	Name  string `json:"name" validate:"required"`
	Value string `json:"value" validate:"required"`
}

// CustomField is a free-form field carried on any record. Names are suffixed
// with __c before they reach Salesforce.
type CustomField struct {
	Name  string `json:"name" validate:"required"`
	Label string `json:"label,omitempty"`
	Value any    `json:"value"`
}

// Address is a unified postal address.
type Address struct {
	Line1      string `json:"line1,omitempty"`
	Line2      string `json:"line2,omitempty"`
	Line3      string `json:"line3,omitempty"`
	City       string `json:"city,omitempty"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postal_code,omitempty"`
	Country    string `json:"country,omitempty"`
}

// Street joins the populated address lines the way Salesforce street fields
// expect them.
func (a Address) Street() string {
	var lines []string
	for _, l := range []string{a.Line1, a.Line2, a.Line3} {
		if l != "" {
			lines = append(lines, l)
		}
	}
	return strings.Join(lines, " - ")
}

// PhoneNumber is a typed phone entry (primary, secondary, mobile, home, fax).
type PhoneNumber struct {
	Type   string `json:"type,omitempty"`
	Number string `json:"number" validate:"required"`
}

// CampaignRef points at a campaign by id or name.
type CampaignRef struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name,omitempty"`
}

// Contact is a unified contact or lead.
type Contact struct {
	ID                string        `json:"id,omitempty"`
	Type              string        `json:"type,omitempty" validate:"omitempty,oneof=contact lead customer"`
	FirstName         string        `json:"first_name,omitempty"`
	LastName          string        `json:"last_name,omitempty"`
	Email             string        `json:"email,omitempty" validate:"omitempty,email"`
	Title             string        `json:"title,omitempty"`
	Description       string        `json:"description,omitempty"`
	LeadSource        string        `json:"lead_source,omitempty"`
	Salutation        string        `json:"salutation,omitempty"`
	Industry          string        `json:"industry,omitempty"`
	Rating            string        `json:"rating,omitempty"`
	Birthdate         string        `json:"birthdate,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Department        string        `json:"department,omitempty"`
	OwnerID           string        `json:"owner_id,omitempty"`
	Unsubscribed      *bool         `json:"unsubscribed,omitempty"`
	NumberOfEmployees *int          `json:"number_of_employees,omitempty"`
	Website           string        `json:"website,omitempty"`
	CompanyName       string        `json:"company_name,omitempty"`
	AnnualRevenue     *float64      `json:"annual_revenue,omitempty"`
	Addresses         []Address     `json:"addresses,omitempty"`
	PhoneNumbers      []PhoneNumber `json:"phone_numbers,omitempty"`
	Campaigns         []CampaignRef `json:"campaigns,omitempty"`
	CustomFields      []CustomField `json:"custom_fields,omitempty" validate:"dive"`
	ExternalID        *ExternalID   `json:"external_id,omitempty"`
}

// IsLead reports whether the record targets the Lead object.
func (c *Contact) IsLead() bool { return c.Type == "lead" }

// Company is a unified account.
type Company struct {
	ID           string        `json:"id,omitempty"`
	Name         string        `json:"name,omitempty"`
	Website      string        `json:"website,omitempty"`
	Industry     string        `json:"industry,omitempty"`
	Description  string        `json:"description,omitempty"`
	OwnerID      string        `json:"owner_id,omitempty"`
	Addresses    []Address     `json:"addresses,omitempty"`
	PhoneNumbers []PhoneNumber `json:"phone_numbers,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty" validate:"dive"`
	ExternalID   *ExternalID   `json:"external_id,omitempty"`
}

// Deal is a unified opportunity.
type Deal struct {
	ID                string        `json:"id,omitempty"`
	Title             string        `json:"title,omitempty"`
	Description       string        `json:"description,omitempty"`
	Type              string        `json:"type,omitempty"`
	Status            string        `json:"status,omitempty"`
	PipelineStageID   string        `json:"pipeline_stage_id,omitempty"`
	CloseDate         string        `json:"close_date" validate:"required"`
	MonetaryAmount    *float64      `json:"monetary_amount,omitempty"`
	WinProbability    *float64      `json:"win_probability,omitempty"`
	LeadSource        string        `json:"lead_source,omitempty"`
	ExpectedRevenue   *float64      `json:"expected_revenue,omitempty"`
	CompanyID         string        `json:"company_id,omitempty"`
	CompanyName       string        `json:"company_name,omitempty"`
	OwnerID           string        `json:"owner_id,omitempty"`
	ContactID         string        `json:"contact_id,omitempty"`
	ContactEmail      string        `json:"contact_email,omitempty" validate:"omitempty,email"`
	ContactExternalID *ExternalID   `json:"contact_external_id,omitempty"`
	CustomFields      []CustomField `json:"custom_fields,omitempty" validate:"dive"`
	ExternalID        *ExternalID   `json:"external_id,omitempty"`
}

// Campaign is a unified marketing campaign.
type Campaign struct {
	ID           string        `json:"id,omitempty"`
	Name         string        `json:"name,omitempty"`
	Type         string        `json:"type,omitempty"`
	Status       string        `json:"status,omitempty"`
	StartDate    string        `json:"start_date,omitempty"`
	EndDate      string        `json:"end_date,omitempty"`
	Description  string        `json:"description,omitempty"`
	Active       *bool         `json:"active,omitempty"`
	CustomFields []CustomField `json:"custom_fields,omitempty" validate:"dive"`
}

// CampaignMember links a contact or lead to a campaign.
type CampaignMember struct {
	ID           string        `json:"id,omitempty"`
	CampaignID   string        `json:"campaign_id" validate:"required"`
	ContactID    string        `json:"contact_id,omitempty"`
	Type         string        `json:"type,omitempty" validate:"omitempty,oneof=contact lead"`
	CustomFields []CustomField `json:"custom_fields,omitempty" validate:"dive"`
}

// Activity is a unified activity mapped to the Task object.
type Activity struct {
	ID               string        `json:"id,omitempty"`
	Type             string        `json:"type,omitempty"`
	Status           string        `json:"status,omitempty"`
	ContactID        string        `json:"contact_id,omitempty"`
	OwnerID          string        `json:"owner_id,omitempty"`
	RelatedTo        string        `json:"related_to,omitempty"`
	ActivityDatetime string        `json:"activity_datetime,omitempty"`
	StartDatetime    string        `json:"start_datetime,omitempty"`
	EndDatetime      string        `json:"end_datetime,omitempty"`
	Description      string        `json:"description,omitempty"`
	CustomFields     []CustomField `json:"custom_fields,omitempty" validate:"dive"`
}

// Donation is a unified recurring donation (NPSP npe03__Recurring_Donation__c).
type Donation struct {
	Name              string        `json:"name,omitempty"`
	Amount            *float64      `json:"amount,omitempty"`
	InstallmentPeriod string        `json:"installment_period,omitempty"`
	CreatedAt         string        `json:"created_at,omitempty"`
	CompanyName       string        `json:"company_name,omitempty"`
	ContactName       string        `json:"contact_name,omitempty"`
	ContactExternalID *ExternalID   `json:"contact_external_id,omitempty"`
	CustomFields      []CustomField `json:"custom_fields,omitempty" validate:"dive"`
	ExternalID        *ExternalID   `json:"external_id,omitempty"`
}

// Decode re-marshals a raw record map into a typed unified record and
// validates it. Taps sometimes double-encode nested collections as JSON
// strings, so those are expanded first.
func Decode[T any](record map[string]any) (*T, error) {
	expandEmbeddedJSON(record, "addresses", "phone_numbers", "campaigns", "custom_fields")

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidRecord, err)
	}

	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidRecord, err)
	}

	if err := validate.Struct(&out); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInvalidRecord, err)
	}
	return &out, nil
}

// expandEmbeddedJSON parses string-valued keys that should hold arrays.
func expandEmbeddedJSON(record map[string]any, keys ...string) {
	for _, key := range keys {
		raw, ok := record[key].(string)
		if !ok || raw == "" {
			continue
		}
		var parsed any
		if err := json.Unmarshal([]byte(raw), &parsed); err == nil {
			record[key] = parsed
		}
	}
}
