// Package domain contains the core domain types and validation logic.
// This is part of the Functional Core - all functions are pure with no I/O.
package domain

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// =============================================================================
// Errors
// =============================================================================

var (
	// Name validation errors
	ErrNameRequired = errors.New("name is required")
	ErrNameTooShort = errors.New("name must be at least 3 characters")
	ErrNameTooLong  = errors.New("name must be at most 100 characters")
	ErrSlugEmpty    = errors.New("name must contain at least one letter or digit")

	// Compose validation errors
	ErrComposeRequired = errors.New("compose spec is required")
)

// =============================================================================
// Template
// =============================================================================

// Template is a stored compose document that deployments are rendered from.
// ComposeSpec is kept exactly as submitted; it is never namespaced in place.
type Template struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	ComposeSpec string    `json:"compose_spec"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewTemplate creates a new template with the given name and compose spec.
// Returns an error if validation fails.
func NewTemplate(name, composeSpec string) (*Template, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if strings.TrimSpace(composeSpec) == "" {
		return nil, ErrComposeRequired
	}

	slug := Slugify(name)
	if slug == "" {
		return nil, ErrSlugEmpty
	}

	now := time.Now().UTC()
	return &Template{
		ID:          "tmpl_" + uuid.New().String()[:8],
		Name:        name,
		Slug:        slug,
		ComposeSpec: composeSpec,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// ValidateName validates a template name.
func ValidateName(name string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(name))
	switch {
	case n == 0:
		return ErrNameRequired
	case n < 3:
		return ErrNameTooShort
	case n > 100:
		return ErrNameTooLong
	}
	return nil
}

// Slugify turns a template name into the slug that prefixes its compose
// project names. The result only holds [a-z0-9-], starts and ends with a
// letter or digit, and never has two hyphens in a row, so it is already a
// normalized compose project name. Letters outside ASCII are dropped.
//
// Example:
//
//	Slugify("WordPress + MariaDB")  // returns "wordpress-mariadb"
//	Slugify("n8n_workflows v1.2")   // returns "n8n-workflows-v1-2"
func Slugify(name string) string {
	var b strings.Builder
	pending := false
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('-')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		if r == ' ' || r == '-' || r == '_' || r == '.' || r == '/' || r == '+' {
			pending = true
		}
	}
	return b.String()
}
