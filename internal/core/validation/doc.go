// Package validation provides pure validation functions for API handlers.
//
// This package contains the functional core logic for validating API requests.
// All functions are pure (no I/O, no side effects).
//
// # Functions
//
//   - ValidateCreateTemplateFields: Validate required fields for template creation
//   - ValidateToken: Check a caller-supplied namespace token
//
// # Usage
//
// The API handlers use these functions to validate requests before processing:
//
//	if field, msg := validation.ValidateCreateTemplateFields(name, spec); field != "" {
//	    // Return 400 Bad Request with msg
//	}
package validation
