package sinks

import (
	"context"

	"github.com/crmbridge/target-salesforce/internal/models"
)

// DealsSink writes unified deals onto Opportunity, resolving contact and
// account references through external ids or the contact's email.
type DealsSink struct {
	*BaseSink
}

func NewDealsSink(base *BaseSink) *DealsSink {
	return &DealsSink{BaseSink: base}
}

func (s *DealsSink) Stream() string { return "deals" }

func (s *DealsSink) Aliases() []string { return []string{"deal", "opportunities"} }

func (s *DealsSink) Prepare(ctx context.Context, record map[string]any) (*Payload, error) {
	deal, err := models.Decode[models.Deal](record)
	if err != nil {
		return nil, err
	}

	const object = "Opportunity"

	// StageName is required and has org-specific values, so an unmatched
	// stage falls back to the first active one rather than failing the row.
	stage := firstNonEmpty(deal.PipelineStageID, deal.Status)
	stage = s.Pickable(ctx, object, stage, "StageName", "", true)

	closeDate, err := ParseDate(deal.CloseDate)
	if err != nil {
		return nil, err
	}

	contactID := deal.ContactID
	companyID := deal.CompanyID

	if deal.ContactExternalID != nil && contactID == "" {
		contactID, err = s.ResolveExternalRef(ctx, "Contact", deal.ContactExternalID)
		if err != nil {
			return nil, err
		}
	} else if contactID == "" && deal.ContactEmail != "" {
		id, accountID, err := s.LookupByEmail(ctx, "Contact", deal.ContactEmail)
		if err != nil {
			return nil, err
		}
		contactID = id
		if companyID == "" {
			companyID = accountID
		}
	}

	mapping := map[string]any{
		"Name":        deal.Title,
		"StageName":   stage,
		"CloseDate":   FormatDateTime(closeDate),
		"Description": deal.Description,
		"Type":        s.Pickable(ctx, object, deal.Type, "Type", "", false),
		"LeadSource":  deal.LeadSource,
		"AccountId":   companyID,
		"OwnerId":     deal.OwnerID,
		"ContactId":   contactID,
	}
	setIfPresent(mapping, "Amount", deal.MonetaryAmount)
	setIfPresent(mapping, "Probability", deal.WinProbability)
	setIfPresent(mapping, "TotalOpportunityQuantity", deal.ExpectedRevenue)

	if deal.ID != "" {
		mapping["Id"] = deal.ID
	}

	if mapping["AccountId"] == nil || mapping["AccountId"] == "" {
		accountID, err := s.LookupAccountID(ctx, deal.CompanyName)
		if err != nil {
			return nil, err
		}
		setIfPresent(mapping, "AccountId", accountID)
	}

	if err := s.ApplyCustomFields(ctx, object, mapping, deal.CustomFields); err != nil {
		return nil, err
	}

	if deal.ExternalID != nil {
		mapping[deal.ExternalID.Name] = deal.ExternalID.Value
	}

	fields, err := s.ValidateOutput(ctx, object, mapping)
	if err != nil {
		return nil, err
	}
	return &Payload{Object: object, Fields: fields}, nil
}
