package salesforce

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/crmbridge/target-salesforce/internal/shared"
)

// Field is a single entry from an sobject describe response.
type Field struct {
	Name              string          `json:"name"`
	Label             string          `json:"label"`
	Type              string          `json:"type"`
	Custom            bool            `json:"custom"`
	Createable        bool            `json:"createable"`
	Nillable          bool            `json:"nillable"`
	DefaultedOnCreate bool            `json:"defaultedOnCreate"`
	ExternalID        bool            `json:"externalId"`
	PicklistValues    []PicklistValue `json:"picklistValues"`
}

// PicklistValue is one allowed value of a picklist field.
type PicklistValue struct {
	Label  string `json:"label"`
	Value  string `json:"value"`
	Active bool   `json:"active"`
}

// SObject is an entry from the global sobjects listing.
type SObject struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	LabelPlural string `json:"labelPlural"`
}

// FieldSet is the describe response bucketed the way the sinks consume it.
type FieldSet struct {
	Createable  []string            // standard fields writable on create
	Custom      []string            // __c fields
	Required    []string            // non-nillable, createable, no default
	ExternalIDs []string            // external id candidate keys for upserts
	Picklists   map[string][]string // field name -> active picklist labels
	fields      map[string]Field
}

// Field looks up a field by API name.
func (fs *FieldSet) Field(name string) (Field, bool) {
	f, ok := fs.fields[name]
	return f, ok
}

// Writable reports whether a payload key may be sent to the API: createable
// standard fields, any custom field, and Id pass.
func (fs *FieldSet) Writable(name string) bool {
	if name == "Id" || strings.HasSuffix(name, "__c") {
		return true
	}
	for _, f := range fs.Createable {
		if f == name {
			return true
		}
	}
	return false
}

var picklistNormalizer = regexp.MustCompile(`\W+`)

// normalizeChoice lowercases a picklist label and strips non-word runes so
// "Customer - Direct" and "customer direct" compare equal.
func normalizeChoice(choice string) string {
	return strings.ToLower(picklistNormalizer.ReplaceAllString(choice, ""))
}

// ResolvePicklist maps a free-form record value onto an active picklist label.
//
// Returns fallback when the field has no picklist or the value does not match
// any label. With selectFirst, an unmatched value falls back to the first
// active label instead (used for required picklists like Opportunity StageName).
func (fs *FieldSet) ResolvePicklist(value, field, fallback string, selectFirst bool) string {
	labels, ok := fs.Picklists[field]
	if !ok || len(labels) == 0 {
		return fallback
	}

	normalized := normalizeChoice(value)
	for _, label := range labels {
		if normalizeChoice(label) == normalized {
			return label
		}
	}

	if selectFirst {
		return labels[0]
	}
	return fallback
}

// Describe fetches raw field metadata for an sobject.
func (c *Client) Describe(ctx context.Context, object string) ([]Field, error) {
	resp, err := c.Get(ctx, fmt.Sprintf("sobjects/%s/describe", object), nil)
	if err != nil {
		return nil, err
	}

	var describe struct {
		Fields []Field `json:"fields"`
	}
	if err := resp.JSON(&describe); err != nil {
		return nil, err
	}
	return describe.Fields, nil
}

// FieldSet returns the bucketed describe metadata for an sobject, cached for
// the lifetime of the client. Schema drift within a single run is not a
// concern the connector handles.
func (c *Client) FieldSet(ctx context.Context, object string) (*FieldSet, error) {
	c.mu.Lock()
	if fs, ok := c.fieldSets[object]; ok {
		c.mu.Unlock()
		return fs, nil
	}
	c.mu.Unlock()

	fields, err := c.Describe(ctx, object)
	if err != nil {
		return nil, err
	}

	fs := buildFieldSet(fields)

	c.mu.Lock()
	c.fieldSets[object] = fs
	c.mu.Unlock()
	return fs, nil
}

// InvalidateFieldSet drops the cached describe for an object, forcing a
// re-fetch after custom fields are created mid-run.
func (c *Client) InvalidateFieldSet(object string) {
	c.mu.Lock()
	delete(c.fieldSets, object)
	c.mu.Unlock()
}

func buildFieldSet(fields []Field) *FieldSet {
	fs := &FieldSet{
		Picklists: map[string][]string{},
		fields:    map[string]Field{},
	}

	for _, f := range fields {
		fs.fields[f.Name] = f

		if f.Custom {
			fs.Custom = append(fs.Custom, f.Name)
		} else if f.Createable {
			fs.Createable = append(fs.Createable, f.Name)
		}

		if !f.Nillable && f.Createable && !f.DefaultedOnCreate {
			fs.Required = append(fs.Required, f.Name)
		}
		if f.ExternalID {
			fs.ExternalIDs = append(fs.ExternalIDs, f.Name)
		}

		for _, p := range f.PicklistValues {
			if p.Active {
				fs.Picklists[f.Name] = append(fs.Picklists[f.Name], p.Label)
			}
		}
	}

	return fs
}

// SObjects lists every sobject in the org, used by the fallback sink to
// match arbitrary stream names onto object names or labels.
func (c *Client) SObjects(ctx context.Context) ([]SObject, error) {
	resp, err := c.Get(ctx, "sobjects", nil)
	if err != nil {
		return nil, err
	}

	var listing struct {
		SObjects []SObject `json:"sobjects"`
	}
	if err := resp.JSON(&listing); err != nil {
		return nil, err
	}

	if len(listing.SObjects) == 0 {
		return nil, fmt.Errorf("%w: empty sobjects listing", shared.ErrAPIRequest)
	}
	return listing.SObjects, nil
}
