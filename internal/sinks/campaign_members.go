package sinks

import (
	"context"
	"fmt"

	"github.com/crmbridge/target-salesforce/internal/models"
	"github.com/crmbridge/target-salesforce/internal/salesforce"
)

// CampaignMembersSink writes unified campaign memberships onto
// CampaignMember, looking up an existing membership first so repeated loads
// update instead of colliding with the uniqueness rule.
type CampaignMembersSink struct {
	*BaseSink
}

func NewCampaignMembersSink(base *BaseSink) *CampaignMembersSink {
	return &CampaignMembersSink{BaseSink: base}
}

func (s *CampaignMembersSink) Stream() string { return "campaignmembers" }

func (s *CampaignMembersSink) Aliases() []string { return []string{"campaign_members"} }

func (s *CampaignMembersSink) Prepare(ctx context.Context, record map[string]any) (*Payload, error) {
	member, err := models.Decode[models.CampaignMember](record)
	if err != nil {
		return nil, err
	}

	const object = "CampaignMember"

	mapping := map[string]any{
		"CampaignId": member.CampaignID,
	}

	memberID := member.ID
	if member.ContactID != "" {
		lookup := "ContactId"
		if member.Type == "lead" {
			lookup = "LeadId"
		}
		mapping[lookup] = member.ContactID

		if memberID == "" {
			memberID, err = s.findMemberID(ctx, member.CampaignID, member.ContactID, lookup)
			if err != nil {
				return nil, err
			}
		}
	}

	if memberID != "" {
		mapping["Id"] = memberID
		// Reference fields on CampaignMember are immutable once created.
		delete(mapping, "CampaignId")
		delete(mapping, "LeadId")
		delete(mapping, "ContactId")
	}

	if err := s.ApplyCustomFields(ctx, object, mapping, member.CustomFields); err != nil {
		return nil, err
	}

	fields, err := s.ValidateOutput(ctx, object, mapping)
	if err != nil {
		return nil, err
	}
	return &Payload{Object: object, Fields: fields}, nil
}

// findMemberID locates an existing membership for the campaign/record pair.
func (s *CampaignMembersSink) findMemberID(ctx context.Context, campaignID, contactID, lookup string) (string, error) {
	soql := fmt.Sprintf(
		"SELECT Id, CampaignId, %s FROM CampaignMember WHERE CampaignId = '%s' AND %s = '%s'",
		lookup, salesforce.QuoteSOQL(campaignID), lookup, salesforce.QuoteSOQL(contactID))

	records, err := s.client.Query(ctx, soql, []string{"Id"})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}
	id, _ := records[0]["Id"].(string)
	return id, nil
}
