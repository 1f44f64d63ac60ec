package store

import (
	"errors"
	"fmt"
	"testing"

	sqlite "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
)

func TestStoreError_Error(t *testing.T) {
	err := NewStoreError("GetTemplate", EntityTemplate, "tmpl_1", "not found", ErrNotFound)
	assert.Equal(t, `store: GetTemplate template "tmpl_1": not found`, err.Error())

	err = NewStoreError("ListDeploymentsByTemplate", EntityDeployment, "", "boom", nil)
	assert.Equal(t, "store: ListDeploymentsByTemplate deployment: boom", err.Error())

	err = NewStoreError("WithTx", "", "", "failed", ErrTxFailed)
	assert.Equal(t, "store: WithTx: failed", err.Error())
	assert.ErrorIs(t, err, ErrTxFailed)
}

func TestIsConflict(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		conflict bool
	}{
		{"duplicate id", ErrDuplicateID, true},
		{"duplicate slug", NewStoreError("CreateTemplate", EntityTemplate, "billing", "taken", ErrDuplicateSlug), true},
		{"duplicate token", fmt.Errorf("retry: %w", ErrDuplicateToken), true},
		{"template in use", ErrTemplateInUse, true},
		{"unknown template", ErrUnknownTemplate, true},
		{"not found", ErrNotFound, false},
		{"database", ErrConnectionFailed, false},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.conflict, IsConflict(tt.err))
		})
	}
}

func TestConstraintViolation_IgnoresOtherErrors(t *testing.T) {
	_, ok := constraintViolation(errors.New("UNIQUE constraint failed: templates.slug"))
	assert.False(t, ok, "only driver errors are classified")

	_, ok = constraintViolation(sqlite.Error{Code: sqlite.ErrBusy})
	assert.False(t, ok)

	_, ok = constraintViolation(nil)
	assert.False(t, ok)
}
