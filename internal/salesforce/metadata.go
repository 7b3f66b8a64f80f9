package salesforce

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/crmbridge/target-salesforce/internal/shared"
)

// soapEnvelope is the createMetadata call for a 100-char Text custom field.
// The Metadata API has no REST equivalent for field creation on this API
// version, so this one call goes through SOAP.
const soapEnvelope = `<s:Envelope xmlns:s="http://schemas.xmlsoap.org/soap/envelope/">
  <s:Header>
    <h:SessionHeader xmlns:h="http://soap.sforce.com/2006/04/metadata"
      xmlns="http://soap.sforce.com/2006/04/metadata"
      xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
      xmlns:xsd="http://www.w3.org/2001/XMLSchema">
      <sessionId>%s</sessionId>
    </h:SessionHeader>
  </s:Header>
  <s:Body xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance"
    xmlns:xsd="http://www.w3.org/2001/XMLSchema">
    <createMetadata xmlns="http://soap.sforce.com/2006/04/metadata">
      <metadata xsi:type="CustomField">
        <fullName>%s.%s</fullName>
        <label>%s</label>
        <externalId>%t</externalId>
        <type>Text</type>
        <length>100</length>
      </metadata>
    </createMetadata>
  </s:Body>
</s:Envelope>`

// EnsureCustomSuffix appends __c to a field name if it is missing.
func EnsureCustomSuffix(name string) string {
	if strings.HasSuffix(name, "__c") {
		return name
	}
	return name + "__c"
}

// CreateCustomField creates a Text custom field on an sobject via the
// Metadata SOAP API, then grants read/edit on it to the configured
// permission sets.
//
// Task custom fields live on the Activity sobject; the permission grant
// still targets Task.
func (c *Client) CreateCustomField(ctx context.Context, object, name, label string) error {
	name = EnsureCustomSuffix(name)
	if label == "" {
		label = strings.TrimSuffix(name, "__c")
	}

	metadataObject := object
	if metadataObject == "Task" {
		metadataObject = "Activity"
	}

	token, err := c.auth.Token(ctx)
	if err != nil {
		return err
	}
	instanceURL, err := c.auth.InstanceURL(ctx)
	if err != nil {
		return err
	}

	soapURL := fmt.Sprintf("%s/services/Soap/m/%s", instanceURL, strings.TrimPrefix(c.config.APIVersion, "v"))
	isExternalID := strings.Contains(strings.ToLower(name), "externalid")

	body := fmt.Sprintf(soapEnvelope, token, metadataObject, name, label, isExternalID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, soapURL, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml")
	req.Header.Set("SOAPAction", `""`)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrAPIRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(resp.Body)
		return &APIError{Status: resp.StatusCode, Body: string(data), Path: "Soap/m"}
	}

	c.logger.Info("created custom field", "object", metadataObject, "field", name)
	c.InvalidateFieldSet(object)

	for _, permissionSetID := range c.config.PermissionSetIDs {
		if err := c.UpdateFieldPermissions(ctx, permissionSetID, object, fmt.Sprintf("%s.%s", object, name)); err != nil {
			c.logger.Warn("failed to update field permissions", "permission_set", permissionSetID, "field", name, "err", err)
		}
	}
	return nil
}

// UpdateFieldPermissions grants read/edit on a field to a permission set via
// the composite API.
func (c *Client) UpdateFieldPermissions(ctx context.Context, permissionSetID, object, fieldName string) error {
	payload := map[string]any{
		"allOrNone": true,
		"compositeRequest": []map[string]any{
			{
				"referenceId": "NewFieldPermission",
				"body": map[string]any{
					"ParentId":        permissionSetID,
					"SobjectType":     object,
					"Field":           fieldName,
					"PermissionsEdit": "true",
					"PermissionsRead": "true",
				},
				"url":    fmt.Sprintf("/services/data/%s/sobjects/FieldPermissions/", c.config.APIVersion),
				"method": "POST",
			},
		},
	}

	_, err := c.Post(ctx, "composite", payload)
	return err
}
