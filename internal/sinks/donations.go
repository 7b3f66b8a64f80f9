package sinks

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/crmbridge/target-salesforce/internal/models"
	"github.com/crmbridge/target-salesforce/internal/salesforce"
	"github.com/crmbridge/target-salesforce/internal/shared"
)

// DonationsSink writes recurring donations onto the NPSP
// npe03__Recurring_Donation__c object.
type DonationsSink struct {
	*BaseSink
}

func NewDonationsSink(base *BaseSink) *DonationsSink {
	return &DonationsSink{BaseSink: base}
}

func (s *DonationsSink) Stream() string { return "recurringdonations" }

func (s *DonationsSink) Aliases() []string { return []string{"recurring_donations"} }

func (s *DonationsSink) Prepare(ctx context.Context, record map[string]any) (*Payload, error) {
	donation, err := models.Decode[models.Donation](record)
	if err != nil {
		return nil, err
	}

	const object = "npe03__Recurring_Donation__c"

	installment := titleCase(donation.InstallmentPeriod)
	installment = s.Pickable(ctx, object, installment, "npe03__Installment_Period__c", "", false)

	established := time.Now()
	if donation.CreatedAt != "" {
		if parsed, err := ParseDate(donation.CreatedAt); err == nil {
			established = parsed
		}
	}

	mapping := map[string]any{
		"Name":                         donation.Name,
		"npe03__Installment_Period__c": installment,
		"npe03__Date_Established__c":   FormatDate(established),
	}
	setIfPresent(mapping, "npe03__Amount__c", donation.Amount)

	// Every donation needs a donor: a contact via external id, an account by
	// company name, or a contact by name, in that order.
	switch {
	case donation.ContactExternalID != nil:
		contactID, err := s.ResolveExternalRef(ctx, "Contact", donation.ContactExternalID)
		if err != nil {
			return nil, err
		}
		mapping["npe03__Contact__c"] = contactID

	case donation.CompanyName != "":
		accountID, err := s.LookupAccountID(ctx, donation.CompanyName)
		if err != nil {
			return nil, err
		}
		setIfPresent(mapping, "npe03__Organization__c", accountID)

	case donation.ContactName != "":
		contactID, err := s.lookupContactByName(ctx, donation.ContactName)
		if err != nil {
			return nil, err
		}
		setIfPresent(mapping, "npe03__Contact__c", contactID)

	default:
		return nil, fmt.Errorf("%w: no account or contact provided for the donation", shared.ErrMissingReference)
	}

	if err := s.ApplyCustomFields(ctx, object, mapping, donation.CustomFields); err != nil {
		return nil, err
	}

	if donation.ExternalID != nil {
		mapping[donation.ExternalID.Name] = donation.ExternalID.Value
	}

	fields, err := s.ValidateOutput(ctx, object, mapping)
	if err != nil {
		return nil, err
	}
	return &Payload{Object: object, Fields: fields}, nil
}

// titleCase uppercases the first letter of each space-separated word, so
// "monthly" matches the "Monthly" installment picklist label.
func titleCase(value string) string {
	words := strings.Fields(strings.ToLower(value))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func (s *DonationsSink) lookupContactByName(ctx context.Context, name string) (string, error) {
	soql := fmt.Sprintf("SELECT Id, Name FROM Contact WHERE Name = '%s'", salesforce.QuoteSOQL(name))
	records, err := s.client.Query(ctx, soql, []string{"Id", "Name"})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	id, _ := records[0]["Id"].(string)
	return id, nil
}
