package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")
	ErrRefreshFailed    = fmt.Errorf("token refresh failed")

	// API errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrRetriableAPI     = fmt.Errorf("retriable API error")
	ErrQuotaExceeded    = fmt.Errorf("Salesforce REST API quota exceeded")
	ErrObjectNotFound   = fmt.Errorf("sobject not found in Salesforce")
	ErrNoCreatableField = fmt.Errorf("no createable fields for stream")

	// Record errors
	ErrInvalidRecord     = fmt.Errorf("invalid record")
	ErrMissingField      = fmt.Errorf("missing required field")
	ErrUnknownStream     = fmt.Errorf("unknown stream")
	ErrMissingReference  = fmt.Errorf("could not resolve record reference")
	ErrInvalidFlag       = fmt.Errorf("invalid flag value")
	ErrMissingArgument   = fmt.Errorf("missing required argument")
	ErrMalformedMessage  = fmt.Errorf("malformed singer message")
	ErrSchemaNotReceived = fmt.Errorf("record received before schema")
)
