package sinks

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/crmbridge/target-salesforce/internal/models"
	"github.com/crmbridge/target-salesforce/internal/salesforce"
	"github.com/crmbridge/target-salesforce/internal/shared"
)

// Lookup cache kinds.
const (
	lookupAccountName  = "account_name"
	lookupContactEmail = "contact_email"
	lookupCampaignName = "campaign_name"
)

// Write runs the upsert decision tree and any post-write hook.
func (b *BaseSink) Write(ctx context.Context, payload *Payload) (*Result, error) {
	if payload == nil || len(payload.Fields) == 0 {
		return &Result{Action: ActionSkipped}, nil
	}

	result, err := b.Upsert(ctx, payload)
	if err != nil {
		return nil, err
	}

	if payload.After != nil && result.ID != "" {
		if err := payload.After(ctx, result.ID); err != nil {
			return result, err
		}
	}
	return result, nil
}

// Upsert decides between update and create for a prepared payload.
//
// The order is fixed: a provided Id wins, then each external-id field present
// on the payload is tried as an upsert key, and only then is a new record
// created. A 404 on a keyed PATCH falls through to the next candidate.
func (b *BaseSink) Upsert(ctx context.Context, payload *Payload) (*Result, error) {
	fields := payload.Fields

	var keys []string
	if id, ok := fields["Id"].(string); ok && id != "" {
		keys = []string{"Id"}
	} else {
		fs, err := b.client.FieldSet(ctx, payload.Object)
		if err != nil {
			return nil, err
		}
		keys = fs.ExternalIDs
	}

	for _, key := range keys {
		value, ok := fields[key].(string)
		if !ok || value == "" {
			continue
		}

		// The upsert key rides in the URL, never in the body.
		body := make(map[string]any, len(fields))
		for k, v := range fields {
			if k != key {
				body[k] = v
			}
		}

		var endpoint string
		if key == "Id" {
			endpoint = fmt.Sprintf("sobjects/%s/%s", payload.Object, value)
		} else {
			endpoint = fmt.Sprintf("sobjects/%s/%s/%s", payload.Object, key, url.PathEscape(value))
		}

		if b.config.OnlyUpsertEmptyFields {
			body = b.protectFilled(ctx, endpoint, body)
			if len(body) == 0 {
				b.logger.Info("every field already populated, skipping update", "object", payload.Object, "id", value)
				return &Result{ID: value, Object: payload.Object, Action: ActionSkipped}, nil
			}
		}

		resp, err := b.client.Patch(ctx, endpoint, body)
		if err != nil {
			var apiErr *salesforce.APIError
			if errors.As(err, &apiErr) && apiErr.IsNotFound() {
				b.logger.Info("no existing record for upsert key, trying next", "object", payload.Object, "key", key, "value", value)
				continue
			}
			return nil, err
		}

		id := value
		action := ActionUpdated
		if len(resp.Body) > 0 {
			var patched struct {
				ID      string `json:"id"`
				Created bool   `json:"created"`
			}
			if err := resp.JSON(&patched); err == nil && patched.ID != "" {
				id = patched.ID
				if patched.Created {
					action = ActionCreated
				}
			}
		}

		b.logger.Info(fmt.Sprintf("%s %s", payload.Object, action), "id", id)
		return &Result{ID: id, Object: payload.Object, Action: action}, nil
	}

	resp, err := b.client.Post(ctx, "sobjects/"+payload.Object, fields)
	if err != nil {
		return nil, err
	}

	var created struct {
		ID string `json:"id"`
	}
	if err := resp.JSON(&created); err != nil {
		return nil, err
	}

	b.logger.Info(payload.Object+" created", "id", created.ID)
	return &Result{ID: created.ID, Object: payload.Object, Action: ActionCreated}, nil
}

// protectFilled implements only_upsert_empty_fields: the existing record is
// fetched and any payload field that already holds a value is dropped, so an
// update can only ever fill gaps.
func (b *BaseSink) protectFilled(ctx context.Context, endpoint string, body map[string]any) map[string]any {
	resp, err := b.client.Get(ctx, endpoint, nil)
	if err != nil {
		return body
	}

	var existing map[string]any
	if err := resp.JSON(&existing); err != nil {
		return body
	}

	out := make(map[string]any, len(body))
	for k, v := range body {
		if current, ok := existing[k]; ok && current != nil && current != "" {
			b.logger.Debug("field already populated, protecting", "field", k)
			continue
		}
		out[k] = v
	}
	return out
}

// ValidateOutput cleans a mapping and strips everything the API would reject:
// only createable standard fields, custom fields, and Id survive.
func (b *BaseSink) ValidateOutput(ctx context.Context, object string, mapping map[string]any) (map[string]any, error) {
	mapping = Clean(mapping)

	fs, err := b.client.FieldSet(ctx, object)
	if err != nil {
		return nil, err
	}
	if len(fs.Createable) == 0 {
		return nil, fmt.Errorf("%w: %s, check your permissions", shared.ErrNoCreatableField, object)
	}

	payload := make(map[string]any, len(mapping))
	for k, v := range mapping {
		if fs.Writable(k) {
			payload[k] = v
		}
	}
	return payload, nil
}

// Pickable resolves a record value against a picklist field, returning
// fallback (or the first active label with selectFirst) when it is invalid.
func (b *BaseSink) Pickable(ctx context.Context, object, value, field, fallback string, selectFirst bool) string {
	fs, err := b.client.FieldSet(ctx, object)
	if err != nil {
		b.logger.Warn("describe unavailable for picklist resolution", "object", object, "field", field, "err", err)
		return fallback
	}

	resolved := fs.ResolvePicklist(value, field, fallback, selectFirst)
	if value != "" && resolved != "" && !strings.EqualFold(resolved, value) {
		b.logger.Warn("picklist value substituted", "field", field, "got", value, "using", resolved)
	}
	return resolved
}

// ApplyCustomFields merges custom fields into a mapping, creating missing
// fields in the org first when create_custom_fields is enabled.
func (b *BaseSink) ApplyCustomFields(ctx context.Context, object string, mapping map[string]any, customFields []models.CustomField) error {
	if len(customFields) == 0 {
		return nil
	}

	if b.config.CreateCustomFields {
		fs, err := b.client.FieldSet(ctx, object)
		if err != nil {
			return err
		}
		known := map[string]bool{}
		for _, name := range fs.Custom {
			known[name] = true
		}

		for _, cf := range customFields {
			name := salesforce.EnsureCustomSuffix(cf.Name)
			if !known[name] {
				if err := b.client.CreateCustomField(ctx, object, cf.Name, cf.Label); err != nil {
					return fmt.Errorf("failed to create custom field %s: %w", name, err)
				}
			}
		}
	}

	for _, cf := range customFields {
		mapping[salesforce.EnsureCustomSuffix(cf.Name)] = cf.Value
	}
	return nil
}

// LookupAccountID resolves an account name to its record id, consulting the
// lookup cache before touching the API. An unmatched name is not an error.
func (b *BaseSink) LookupAccountID(ctx context.Context, name string) (string, error) {
	if name == "" {
		return "", nil
	}

	if b.lookups != nil {
		if id, ok := b.lookups.Get(lookupAccountName, name); ok {
			return id, nil
		}
	}

	soql := fmt.Sprintf("SELECT Id, Name FROM Account WHERE Name = '%s'", salesforce.QuoteSOQL(name))
	records, err := b.client.Query(ctx, soql, []string{"Id", "Name"})
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "", nil
	}

	id, _ := records[0]["Id"].(string)
	if id != "" && b.lookups != nil {
		if err := b.lookups.Put(lookupAccountName, name, id); err != nil {
			b.logger.Debug("lookup cache write failed", "err", err)
		}
	}
	return id, nil
}

// LookupByEmail finds a Contact or Lead id (and its AccountId for contacts)
// by email address.
func (b *BaseSink) LookupByEmail(ctx context.Context, object, email string) (id, accountID string, err error) {
	if email == "" {
		return "", "", nil
	}

	cacheKey := object + ":" + email
	if b.lookups != nil {
		if cached, ok := b.lookups.Get(lookupContactEmail, cacheKey); ok {
			return cached, "", nil
		}
	}

	soql := fmt.Sprintf("SELECT Id, AccountId FROM %s WHERE Email = '%s'", object, salesforce.QuoteSOQL(email))
	if object == "Lead" {
		soql = fmt.Sprintf("SELECT Id FROM Lead WHERE Email = '%s'", salesforce.QuoteSOQL(email))
	}

	records, err := b.client.Query(ctx, soql, []string{"Id", "AccountId"})
	if err != nil {
		return "", "", err
	}
	if len(records) == 0 {
		return "", "", nil
	}

	id, _ = records[0]["Id"].(string)
	accountID, _ = records[0]["AccountId"].(string)

	if id != "" && b.lookups != nil {
		if err := b.lookups.Put(lookupContactEmail, cacheKey, id); err != nil {
			b.logger.Debug("lookup cache write failed", "err", err)
		}
	}
	return id, accountID, nil
}

// ResolveExternalRef fetches a record id through an external-id GET
// (sobjects/{object}/{field}/{value}).
func (b *BaseSink) ResolveExternalRef(ctx context.Context, object string, ref *models.ExternalID) (string, error) {
	if ref == nil {
		return "", nil
	}

	endpoint := fmt.Sprintf("sobjects/%s/%s/%s", object, ref.Name, url.PathEscape(ref.Value))
	resp, err := b.client.Get(ctx, endpoint, nil)
	if err != nil {
		return "", err
	}

	var record struct {
		ID string `json:"Id"`
	}
	if err := resp.JSON(&record); err != nil {
		return "", err
	}
	return record.ID, nil
}
