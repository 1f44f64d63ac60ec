package validation

import "unicode/utf8"

const (
	// MinTemplateNameLength is the shortest accepted template name.
	MinTemplateNameLength = 3
	// MaxTemplateNameLength is the longest accepted template name.
	MaxTemplateNameLength = 100
)

// =============================================================================
// Template Validation Functions
// =============================================================================

// ValidateCreateTemplateFields validates required fields for template creation.
// Returns the field name and error message if validation fails.
// Returns empty strings if all fields are valid.
//
// Example:
//
//	field, msg := ValidateCreateTemplateFields("My App", "services:")
//	if field != "" {
//	    // Handle validation error
//	}
func ValidateCreateTemplateFields(name, composeSpec string) (field, message string) {
	if name == "" {
		return "name", "name is required"
	}
	if n := utf8.RuneCountInString(name); n < MinTemplateNameLength {
		return "name", "name must be at least 3 characters"
	} else if n > MaxTemplateNameLength {
		return "name", "name must be at most 100 characters"
	}
	if composeSpec == "" {
		return "compose_spec", "compose_spec is required"
	}
	return "", ""
}
