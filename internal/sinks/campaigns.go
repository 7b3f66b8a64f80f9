package sinks

import (
	"context"
	"fmt"

	"github.com/crmbridge/target-salesforce/internal/models"
	"github.com/crmbridge/target-salesforce/internal/salesforce"
	"github.com/crmbridge/target-salesforce/internal/shared"
)

// CampaignsSink writes unified campaigns onto Campaign, deduplicating by
// name against the oldest existing campaign when no id is given.
type CampaignsSink struct {
	*BaseSink
}

func NewCampaignsSink(base *BaseSink) *CampaignsSink {
	return &CampaignsSink{BaseSink: base}
}

func (s *CampaignsSink) Stream() string { return "campaigns" }

func (s *CampaignsSink) Aliases() []string { return nil }

func (s *CampaignsSink) Prepare(ctx context.Context, record map[string]any) (*Payload, error) {
	campaign, err := models.Decode[models.Campaign](record)
	if err != nil {
		return nil, err
	}

	const object = "Campaign"

	mapping := map[string]any{
		"Name":        campaign.Name,
		"Type":        campaign.Type,
		"Status":      campaign.Status,
		"StartDate":   campaign.StartDate,
		"EndDate":     campaign.EndDate,
		"Description": campaign.Description,
	}
	setIfPresent(mapping, "IsActive", campaign.Active)

	if campaign.ID != "" {
		mapping["Id"] = campaign.ID
	} else if campaign.Name != "" {
		soql := fmt.Sprintf(
			"SELECT Name, Id, CreatedDate FROM Campaign WHERE Name = '%s' ORDER BY CreatedDate ASC",
			salesforce.QuoteSOQL(campaign.Name))
		existing, err := s.client.Query(ctx, soql, []string{"Name", "Id"})
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			if id, _ := existing[0]["Id"].(string); id != "" {
				mapping["Id"] = id
			}
		}
	}

	if err := s.ApplyCustomFields(ctx, object, mapping, campaign.CustomFields); err != nil {
		return nil, err
	}

	fields, err := s.ValidateOutput(ctx, object, mapping)
	if err != nil {
		return nil, err
	}

	// Salesforce requires Name on campaign creates.
	if fields["Id"] == nil && fields["Name"] == nil {
		return nil, fmt.Errorf("%w: campaigns require a Name", shared.ErrMissingField)
	}

	return &Payload{Object: object, Fields: fields}, nil
}
