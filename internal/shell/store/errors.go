// Package store persists templates and the deployments rendered from them.
package store

import (
	"errors"
	"fmt"
	"strings"

	sqlite "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Error Types
// =============================================================================

// Entity is the kind of record a StoreError is about.
type Entity string

const (
	EntityTemplate   Entity = "template"
	EntityDeployment Entity = "deployment"
)

var (
	// ErrNotFound is returned when no template or deployment matches.
	ErrNotFound = errors.New("record not found")

	// Uniqueness rules from 000001_init.up.sql.
	ErrDuplicateID    = errors.New("id already in use")
	ErrDuplicateSlug  = errors.New("template slug already in use")
	ErrDuplicateToken = errors.New("namespace token already used by a deployment of this template")

	// ErrTemplateInUse is returned when deleting a template that still has
	// deployments. Their engine volumes were named from it.
	ErrTemplateInUse = errors.New("template still has deployments")

	// ErrUnknownTemplate is returned when a deployment names a template that
	// is not stored.
	ErrUnknownTemplate = errors.New("deployment refers to an unknown template")

	// Database failures
	ErrConnectionFailed = errors.New("database connection failed")
	ErrMigrationFailed  = errors.New("database migration failed")
	ErrTxFailed         = errors.New("transaction failed")

	// ErrInvalidData is returned when a deployment's volume renames cannot be
	// encoded to or decoded from their JSON column.
	ErrInvalidData = errors.New("invalid volume rename data")
)

// StoreError ties a failure to the operation and the record it was keyed on.
type StoreError struct {
	Op      string // e.g. "CreateDeployment"
	Entity  Entity
	ID      string // id, slug or token
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	var b strings.Builder
	b.WriteString("store: ")
	b.WriteString(e.Op)
	if e.Entity != "" {
		b.WriteString(" " + string(e.Entity))
	}
	if e.ID != "" {
		fmt.Fprintf(&b, " %q", e.ID)
	}
	b.WriteString(": " + e.Message)
	return b.String()
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError.
func NewStoreError(op string, entity Entity, id, message string, err error) *StoreError {
	return &StoreError{
		Op:      op,
		Entity:  entity,
		ID:      id,
		Message: message,
		Err:     err,
	}
}

// IsConflict reports whether err comes from a uniqueness or template linkage
// rule rather than from the database itself.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateID) ||
		errors.Is(err, ErrDuplicateSlug) ||
		errors.Is(err, ErrDuplicateToken) ||
		errors.Is(err, ErrTemplateInUse) ||
		errors.Is(err, ErrUnknownTemplate)
}

// =============================================================================
// Constraint Violations
// =============================================================================

// violation is a constraint SQLite rejected a write with.
type violation struct {
	foreignKey bool
	// columns is "table.col[, table.col]" for UNIQUE and PRIMARY KEY rules.
	columns string
}

// constraintViolation extracts the broken rule from a driver error.
func constraintViolation(err error) (violation, bool) {
	var sqlErr sqlite.Error
	if !errors.As(err, &sqlErr) || sqlErr.Code != sqlite.ErrConstraint {
		return violation{}, false
	}
	switch sqlErr.ExtendedCode {
	case sqlite.ErrConstraintForeignKey:
		return violation{foreignKey: true}, true
	case sqlite.ErrConstraintUnique, sqlite.ErrConstraintPrimaryKey:
		_, columns, _ := strings.Cut(sqlErr.Error(), "constraint failed: ")
		return violation{columns: columns}, true
	}
	return violation{}, false
}
