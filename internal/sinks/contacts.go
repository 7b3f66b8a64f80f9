package sinks

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/crmbridge/target-salesforce/internal/models"
	"github.com/crmbridge/target-salesforce/internal/salesforce"
)

// ContactsSink writes unified contacts onto Contact, or Lead when the record
// carries type "lead". Campaign membership is assigned after the write.
type ContactsSink struct {
	*BaseSink
}

func NewContactsSink(base *BaseSink) *ContactsSink {
	return &ContactsSink{BaseSink: base}
}

func (s *ContactsSink) Stream() string { return "contacts" }

func (s *ContactsSink) Aliases() []string { return []string{"customers"} }

// contactPhoneFields maps unified phone types onto the Contact phone fields.
// A phone with an unrecognized type lands on the next unused slot.
var contactPhoneFields = []struct {
	field string
	types []string
}{
	{"Phone", []string{"primary"}},
	{"OtherPhone", []string{"secondary"}},
	{"MobilePhone", []string{"mobile"}},
	{"HomePhone", []string{"home"}},
}

func (s *ContactsSink) Prepare(ctx context.Context, record map[string]any) (*Payload, error) {
	contact, err := models.Decode[models.Contact](record)
	if err != nil {
		return nil, err
	}

	object := "Contact"
	if contact.IsLead() {
		object = "Lead"
	}

	mapping := map[string]any{
		"FirstName":   contact.FirstName,
		"LastName":    contact.LastName,
		"Email":       contact.Email,
		"Title":       contact.Title,
		"Description": contact.Description,
		"LeadSource":  s.Pickable(ctx, object, contact.LeadSource, "LeadSource", "", false),
		"Salutation":  s.Pickable(ctx, object, contact.Salutation, "Salutation", "", false),
		"Industry":    s.Pickable(ctx, object, contact.Industry, "Industry", "", false),
		"Rating":      s.Pickable(ctx, object, contact.Rating, "Rating", "", false),
		"Birthdate":   contact.Birthdate,
		"OwnerId":     contact.OwnerID,
		"Website":     contact.Website,
	}
	setIfPresent(mapping, "HasOptedOutOfEmail", contact.Unsubscribed)
	setIfPresent(mapping, "NumberOfEmployees", contact.NumberOfEmployees)
	setIfPresent(mapping, "AnnualRevenue", contact.AnnualRevenue)

	if object == "Contact" {
		mapping["Department"] = contact.Department
	} else {
		// Company is required on Lead converts, not on Contact.
		mapping["Company"] = contact.CompanyName
	}

	switch {
	case contact.ID != "":
		mapping["Id"] = contact.ID
	case contact.ExternalID != nil:
		mapping[contact.ExternalID.Name] = contact.ExternalID.Value
	case contact.Email != "":
		// No key on the record: match an existing row by email so the write
		// becomes an update instead of a duplicate create.
		id, _, err := s.LookupByEmail(ctx, object, contact.Email)
		if err != nil {
			return nil, err
		}
		if id != "" {
			mapping["Id"] = id
		}
	}

	s.mapAddresses(mapping, object, contact.Addresses)
	s.mapPhones(mapping, contact.PhoneNumbers)

	if err := s.ApplyCustomFields(ctx, object, mapping, contact.CustomFields); err != nil {
		return nil, err
	}

	if mapping["AccountId"] == nil && contact.CompanyName != "" {
		accountID, err := s.LookupAccountID(ctx, contact.CompanyName)
		if err != nil {
			return nil, err
		}
		setIfPresent(mapping, "AccountId", accountID)
	}

	fields, err := s.ValidateOutput(ctx, object, mapping)
	if err != nil {
		return nil, err
	}

	payload := &Payload{Object: object, Fields: fields}
	if len(contact.Campaigns) > 0 {
		campaigns := contact.Campaigns
		payload.After = func(ctx context.Context, id string) error {
			return s.assignToCampaigns(ctx, object, id, campaigns)
		}
	}
	return payload, nil
}

// mapAddresses places the first address on the Mailing (Contact) or bare
// (Lead) fields and a second one, contacts only, on the Other fields.
func (s *ContactsSink) mapAddresses(mapping map[string]any, object string, addresses []models.Address) {
	if len(addresses) == 0 {
		return
	}

	prefix := "Mailing"
	if object == "Lead" {
		prefix = ""
	}

	first := addresses[0]
	mapping[prefix+"Street"] = first.Street()
	mapping[prefix+"City"] = first.City
	mapping[prefix+"State"] = first.State
	mapping[prefix+"PostalCode"] = first.PostalCode
	mapping[prefix+"Country"] = first.Country

	// Leads only have one address.
	if len(addresses) >= 2 && object == "Contact" {
		second := addresses[1]
		mapping["OtherStreet"] = second.Street()
		mapping["OtherCity"] = second.City
		mapping["OtherState"] = second.State
		mapping["OtherPostalCode"] = second.PostalCode
		mapping["OtherCountry"] = second.Country
	}
}

func (s *ContactsSink) mapPhones(mapping map[string]any, phones []models.PhoneNumber) {
	for i, phone := range phones {
		if i >= len(contactPhoneFields) {
			break
		}

		field := contactPhoneFields[i].field
		for _, candidate := range contactPhoneFields {
			for _, t := range candidate.types {
				if phone.Type == t {
					field = candidate.field
				}
			}
		}
		mapping[field] = phone.Number
	}
}

// assignToCampaigns creates a CampaignMember per campaign reference,
// resolving ids by name where needed. Existing memberships are tolerated.
func (s *ContactsSink) assignToCampaigns(ctx context.Context, object, contactID string, campaigns []models.CampaignRef) error {
	for _, campaign := range campaigns {
		campaignID := campaign.ID
		if campaignID == "" {
			resolved, err := s.lookupCampaignID(ctx, campaign.Name)
			if err != nil {
				return err
			}
			if resolved == "" {
				s.logger.Info("no campaign found, skipping membership", "name", campaign.Name)
				continue
			}
			campaignID = resolved
		}

		member := map[string]any{"CampaignId": campaignID}
		if object == "Contact" {
			member["ContactId"] = contactID
		} else {
			member["LeadId"] = contactID
		}

		s.logger.Info("adding campaign member", "campaign_id", campaignID, "record_id", contactID)

		if _, err := s.client.Post(ctx, "sobjects/CampaignMember", member); err != nil {
			var apiErr *salesforce.APIError
			if errors.As(err, &apiErr) && strings.Contains(apiErr.Body, "Already a campaign member") {
				s.logger.Info("record is already a campaign member", "campaign_id", campaignID)
				continue
			}
			return fmt.Errorf("failed to create campaign member: %w", err)
		}
	}
	return nil
}

// lookupCampaignID resolves a campaign name to the oldest matching campaign.
func (s *ContactsSink) lookupCampaignID(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nil
	}

	if s.lookups != nil {
		if id, ok := s.lookups.Get(lookupCampaignName, name); ok {
			return id, nil
		}
	}

	soql := fmt.Sprintf(
		"SELECT Id, CreatedDate FROM Campaign WHERE Name = '%s' ORDER BY CreatedDate ASC",
		salesforce.QuoteSOQL(name))
	records, err := s.client.Query(ctx, soql, []string{"Id"})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}

	id, _ := records[0]["Id"].(string)
	if id != "" && s.lookups != nil {
		if err := s.lookups.Put(lookupCampaignName, name, id); err != nil {
			s.logger.Debug("lookup cache write failed", "err", err)
		}
	}
	return id, nil
}
