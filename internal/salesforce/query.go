package salesforce

import (
	"context"
	"net/url"
	"strings"
)

// Query runs a SOQL query and returns each record trimmed to the requested
// fields. A nil fields slice returns the records as-is minus the attributes
// envelope.
func (c *Client) Query(ctx context.Context, soql string, fields []string) ([]map[string]any, error) {
	params := url.Values{"q": []string{soql}}

	resp, err := c.Get(ctx, "query", params)
	if err != nil {
		return nil, err
	}

	var result struct {
		Records []map[string]any `json:"records"`
	}
	if err := resp.JSON(&result); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		filtered := map[string]any{}
		for k, v := range record {
			if k == "attributes" {
				continue
			}
			if fields == nil || containsField(fields, k) {
				filtered[k] = v
			}
		}
		out = append(out, filtered)
	}
	return out, nil
}

func containsField(fields []string, name string) bool {
	for _, f := range fields {
		if strings.EqualFold(f, name) {
			return true
		}
	}
	return false
}

// QuoteSOQL escapes a string literal for interpolation into a SOQL WHERE
// clause. Backslashes and single quotes are the only characters SOQL treats
// specially inside a quoted literal.
func QuoteSOQL(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}
