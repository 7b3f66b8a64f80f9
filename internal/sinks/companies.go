package sinks

import (
	"context"

	"github.com/crmbridge/target-salesforce/internal/models"
)

// CompaniesSink writes unified companies onto Account.
type CompaniesSink struct {
	*BaseSink
}

func NewCompaniesSink(base *BaseSink) *CompaniesSink {
	return &CompaniesSink{BaseSink: base}
}

func (s *CompaniesSink) Stream() string { return "companies" }

func (s *CompaniesSink) Aliases() []string { return []string{"company", "accounts"} }

func (s *CompaniesSink) Prepare(ctx context.Context, record map[string]any) (*Payload, error) {
	company, err := models.Decode[models.Company](record)
	if err != nil {
		return nil, err
	}

	const object = "Account"

	mapping := map[string]any{
		"Name":        company.Name,
		"Site":        company.Website,
		"Type":        s.Pickable(ctx, object, "Customer - Direct", "Type", "", false),
		"Industry":    company.Industry,
		"Description": company.Description,
		"OwnerId":     company.OwnerID,
	}

	if company.ID != "" {
		mapping["Id"] = company.ID
	} else if company.ExternalID != nil {
		mapping[company.ExternalID.Name] = company.ExternalID.Value
	}

	if len(company.Addresses) > 0 {
		billing := company.Addresses[0]
		mapping["BillingStreet"] = billing.Street()
		mapping["BillingCity"] = billing.City
		mapping["BillingState"] = billing.State
		mapping["BillingPostalCode"] = billing.PostalCode
		mapping["BillingCountry"] = billing.Country
	}
	if len(company.Addresses) >= 2 {
		shipping := company.Addresses[1]
		mapping["ShippingStreet"] = shipping.Street()
		mapping["ShippingCity"] = shipping.City
		mapping["ShippingState"] = shipping.State
		mapping["ShippingPostalCode"] = shipping.PostalCode
		mapping["ShippingCountry"] = shipping.Country
	}

	for i, phone := range company.PhoneNumbers {
		field := "Phone"
		if phone.Type == "fax" || (phone.Type == "" && i > 0) {
			field = "Fax"
		}
		mapping[field] = phone.Number
	}

	if err := s.ApplyCustomFields(ctx, object, mapping, company.CustomFields); err != nil {
		return nil, err
	}

	fields, err := s.ValidateOutput(ctx, object, mapping)
	if err != nil {
		return nil, err
	}
	return &Payload{Object: object, Fields: fields}, nil
}
