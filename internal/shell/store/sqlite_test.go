package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/artpar/composens/internal/core/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testComposeSpec = `services:
  db:
    image: postgres:16
    volumes:
      - db-data:/var/lib/postgresql/data
volumes:
  db-data:
`

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

func createTestTemplate(t *testing.T, store Store, name string) *domain.Template {
	t.Helper()
	template, err := domain.NewTemplate(name, testComposeSpec)
	require.NoError(t, err)

	err = store.CreateTemplate(context.Background(), template)
	require.NoError(t, err)
	return template
}

func newTestDeployment(t *testing.T, template *domain.Template, token string) *domain.Deployment {
	t.Helper()
	deployment, err := domain.NewDeployment(
		*template,
		token,
		template.Slug+"-"+token,
		"rendered for "+token,
		[]domain.VolumeRename{{From: "db-data", To: "db-data-" + token}},
		0,
	)
	require.NoError(t, err)
	return deployment
}

func createTestDeployment(t *testing.T, store Store, template *domain.Template, token string) *domain.Deployment {
	t.Helper()
	deployment := newTestDeployment(t, template, token)
	require.NoError(t, store.CreateDeployment(context.Background(), deployment))
	return deployment
}

// =============================================================================
// Template CRUD Tests
// =============================================================================

func TestCreateTemplate_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	template := createTestTemplate(t, store, "Postgres Stack")

	retrieved, err := store.GetTemplate(ctx, template.ID)
	require.NoError(t, err)
	assert.Equal(t, template.ID, retrieved.ID)
	assert.Equal(t, "Postgres Stack", retrieved.Name)
	assert.Equal(t, "postgres-stack", retrieved.Slug)
	assert.Equal(t, testComposeSpec, retrieved.ComposeSpec)
	assert.WithinDuration(t, template.CreatedAt, retrieved.CreatedAt, time.Second)
}

func TestCreateTemplate_DuplicateID(t *testing.T) {
	store := setupTestStore(t)
	template := createTestTemplate(t, store, "Postgres Stack")

	dup := *template
	dup.Slug = "other-slug"
	err := store.CreateTemplate(context.Background(), &dup)
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestCreateTemplate_DuplicateSlug(t *testing.T) {
	store := setupTestStore(t)
	createTestTemplate(t, store, "Postgres Stack")

	other, err := domain.NewTemplate("postgres stack", testComposeSpec)
	require.NoError(t, err)

	err = store.CreateTemplate(context.Background(), other)
	assert.ErrorIs(t, err, ErrDuplicateSlug)
	assert.True(t, IsConflict(err))

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, EntityTemplate, storeErr.Entity)
	assert.Equal(t, "postgres-stack", storeErr.ID)
}

func TestGetTemplate_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetTemplate(context.Background(), "tmpl_missing")
	assert.ErrorIs(t, err, ErrNotFound)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "GetTemplate", storeErr.Op)
	assert.Equal(t, "tmpl_missing", storeErr.ID)
}

func TestGetTemplateBySlug(t *testing.T) {
	store := setupTestStore(t)
	template := createTestTemplate(t, store, "Postgres Stack")

	retrieved, err := store.GetTemplateBySlug(context.Background(), "postgres-stack")
	require.NoError(t, err)
	assert.Equal(t, template.ID, retrieved.ID)

	_, err = store.GetTemplateBySlug(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTemplate_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	template := createTestTemplate(t, store, "Postgres Stack")

	require.NoError(t, store.DeleteTemplate(ctx, template.ID))

	_, err := store.GetTemplate(ctx, template.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	err = store.DeleteTemplate(ctx, template.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteTemplate_WithDeployments(t *testing.T) {
	store := setupTestStore(t)
	template := createTestTemplate(t, store, "Postgres Stack")
	createTestDeployment(t, store, template, "a1b2c3d4")

	err := store.DeleteTemplate(context.Background(), template.ID)
	assert.ErrorIs(t, err, ErrTemplateInUse)
}

func TestListTemplates_WithPagination(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		createTestTemplate(t, store, fmt.Sprintf("Template %d", i))
	}

	all, err := store.ListTemplates(ctx, DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, all, 5)
	assert.Equal(t, "Template 4", all[0].Name, "newest first")

	page, err := store.ListTemplates(ctx, ListOptions{Limit: 2, Offset: 1})
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, all[1].ID, page[0].ID)
	assert.Equal(t, all[2].ID, page[1].ID)

	beyond, err := store.ListTemplates(ctx, ListOptions{Limit: 10, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestListTemplates_EmptyResult(t *testing.T) {
	store := setupTestStore(t)

	templates, err := store.ListTemplates(context.Background(), DefaultListOptions())
	require.NoError(t, err)
	assert.NotNil(t, templates)
	assert.Empty(t, templates)
}

// =============================================================================
// Deployment Tests
// =============================================================================

func TestCreateDeployment_Success(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	template := createTestTemplate(t, store, "Postgres Stack")

	deployment := newTestDeployment(t, template, "a1b2c3d4")
	deployment.Skipped = 2
	require.NoError(t, store.CreateDeployment(ctx, deployment))

	retrieved, err := store.GetDeployment(ctx, deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, template.ID, retrieved.TemplateID)
	assert.Equal(t, "a1b2c3d4", retrieved.Token)
	assert.Equal(t, "postgres-stack-a1b2c3d4", retrieved.ProjectName)
	assert.Equal(t, "rendered for a1b2c3d4", retrieved.ComposeSpec)
	assert.Equal(t, []domain.VolumeRename{{From: "db-data", To: "db-data-a1b2c3d4"}}, retrieved.Volumes)
	assert.Equal(t, 2, retrieved.Skipped)
}

func TestCreateDeployment_NoVolumes(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	template := createTestTemplate(t, store, "Postgres Stack")

	deployment := newTestDeployment(t, template, "a1b2c3d4")
	deployment.Volumes = nil
	require.NoError(t, store.CreateDeployment(ctx, deployment))

	retrieved, err := store.GetDeployment(ctx, deployment.ID)
	require.NoError(t, err)
	assert.NotNil(t, retrieved.Volumes)
	assert.Empty(t, retrieved.Volumes)
}

func TestCreateDeployment_DuplicateToken(t *testing.T) {
	store := setupTestStore(t)
	template := createTestTemplate(t, store, "Postgres Stack")
	createTestDeployment(t, store, template, "a1b2c3d4")

	err := store.CreateDeployment(context.Background(), newTestDeployment(t, template, "a1b2c3d4"))
	assert.ErrorIs(t, err, ErrDuplicateToken)
}

func TestCreateDeployment_SameTokenOtherTemplate(t *testing.T) {
	store := setupTestStore(t)
	first := createTestTemplate(t, store, "First Stack")
	second := createTestTemplate(t, store, "Second Stack")

	createTestDeployment(t, store, first, "a1b2c3d4")
	err := store.CreateDeployment(context.Background(), newTestDeployment(t, second, "a1b2c3d4"))
	assert.NoError(t, err)
}

func TestCreateDeployment_UnknownTemplate(t *testing.T) {
	store := setupTestStore(t)
	template, err := domain.NewTemplate("Unsaved Stack", testComposeSpec)
	require.NoError(t, err)

	err = store.CreateDeployment(context.Background(), newTestDeployment(t, template, "a1b2c3d4"))
	assert.ErrorIs(t, err, ErrUnknownTemplate)
}

func TestGetDeployment_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetDeployment(context.Background(), "depl_missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetDeployment_CorruptedVolumesJSON(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	template := createTestTemplate(t, store, "Postgres Stack")
	deployment := createTestDeployment(t, store, template, "a1b2c3d4")

	_, err := store.db.Exec(`UPDATE deployments SET volumes = '{not json' WHERE id = ?`, deployment.ID)
	require.NoError(t, err)

	_, err = store.GetDeployment(ctx, deployment.ID)
	assert.ErrorIs(t, err, ErrInvalidData)

	_, err = store.ListDeploymentsByTemplate(ctx, template.ID, DefaultListOptions())
	assert.ErrorIs(t, err, ErrInvalidData)
}

func TestDeleteDeployment(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	template := createTestTemplate(t, store, "Postgres Stack")
	deployment := createTestDeployment(t, store, template, "a1b2c3d4")

	require.NoError(t, store.DeleteDeployment(ctx, deployment.ID))
	assert.ErrorIs(t, store.DeleteDeployment(ctx, deployment.ID), ErrNotFound)

	// The template can go once its deployments are gone.
	assert.NoError(t, store.DeleteTemplate(ctx, template.ID))
}

func TestListDeploymentsByTemplate(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	first := createTestTemplate(t, store, "First Stack")
	second := createTestTemplate(t, store, "Second Stack")

	createTestDeployment(t, store, first, "aaaa1111")
	createTestDeployment(t, store, first, "bbbb2222")
	createTestDeployment(t, store, second, "cccc3333")

	deployments, err := store.ListDeploymentsByTemplate(ctx, first.ID, DefaultListOptions())
	require.NoError(t, err)
	require.Len(t, deployments, 2)
	assert.Equal(t, "bbbb2222", deployments[0].Token)
	assert.Equal(t, "aaaa1111", deployments[1].Token)

	none, err := store.ListDeploymentsByTemplate(ctx, "tmpl_missing", DefaultListOptions())
	require.NoError(t, err)
	assert.Empty(t, none)
}

// =============================================================================
// Transaction Tests
// =============================================================================

func TestWithTx_CommitSuccess(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var createdID string
	err := store.WithTx(ctx, func(txStore Store) error {
		template, err := domain.NewTemplate("Transaction Test", testComposeSpec)
		if err != nil {
			return err
		}
		createdID = template.ID
		return txStore.CreateTemplate(ctx, template)
	})
	require.NoError(t, err)

	retrieved, err := store.GetTemplate(ctx, createdID)
	require.NoError(t, err)
	assert.Equal(t, "Transaction Test", retrieved.Name)
}

func TestWithTx_RollbackOnError(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	var createdID string
	err := store.WithTx(ctx, func(txStore Store) error {
		template, err := domain.NewTemplate("Rollback Test", testComposeSpec)
		if err != nil {
			return err
		}
		createdID = template.ID
		if err := txStore.CreateTemplate(ctx, template); err != nil {
			return err
		}
		return assert.AnError
	})
	assert.ErrorIs(t, err, assert.AnError)

	_, err = store.GetTemplate(ctx, createdID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithTx_DeploymentOperations(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	template := createTestTemplate(t, store, "Postgres Stack")

	err := store.WithTx(ctx, func(txStore Store) error {
		deployment := newTestDeployment(t, template, "a1b2c3d4")
		if err := txStore.CreateDeployment(ctx, deployment); err != nil {
			return err
		}
		got, err := txStore.GetDeployment(ctx, deployment.ID)
		if err != nil {
			return err
		}
		assert.Equal(t, "a1b2c3d4", got.Token)

		list, err := txStore.ListDeploymentsByTemplate(ctx, template.ID, DefaultListOptions())
		if err != nil {
			return err
		}
		assert.Len(t, list, 1)

		// Nested WithTx runs inside the same transaction.
		return txStore.WithTx(ctx, func(inner Store) error {
			_, err := inner.GetTemplateBySlug(ctx, template.Slug)
			return err
		})
	})
	require.NoError(t, err)

	deployments, err := store.ListDeploymentsByTemplate(ctx, template.ID, DefaultListOptions())
	require.NoError(t, err)
	assert.Len(t, deployments, 1)
}

// =============================================================================
// Misc Tests
// =============================================================================

func TestPing(t *testing.T) {
	store := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestListOptions_Normalize(t *testing.T) {
	assert.Equal(t, ListOptions{Limit: 100}, ListOptions{}.Normalize())
	assert.Equal(t, ListOptions{Limit: 1000}, ListOptions{Limit: 5000}.Normalize())
	assert.Equal(t, ListOptions{Limit: 10}, ListOptions{Limit: 10, Offset: -3}.Normalize())
}
