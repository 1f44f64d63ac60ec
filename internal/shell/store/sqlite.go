package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/artpar/composens/internal/core/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// =============================================================================
// Executor Interface - Shared by DB and Transaction
// =============================================================================

// executor abstracts database operations that can be performed on both
// a database connection and a transaction.
type executor interface {
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	// Open database connection
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to open database", ErrConnectionFailed)
	}
	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", "failed to ping database", ErrConnectionFailed)
	}

	// Run migrations
	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Ping checks that the database is reachable.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return NewStoreError("Ping", "", "", err.Error(), ErrConnectionFailed)
	}
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Template Operations
// =============================================================================

// templateRow represents a template row in the database.
type templateRow struct {
	ID          string `db:"id"`
	Name        string `db:"name"`
	Slug        string `db:"slug"`
	ComposeSpec string `db:"compose_spec"`
	CreatedAt   string `db:"created_at"`
	UpdatedAt   string `db:"updated_at"`
}

func (s *SQLiteStore) CreateTemplate(ctx context.Context, template *domain.Template) error {
	return createTemplate(ctx, s.db, template)
}

func (s *SQLiteStore) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	return getTemplate(ctx, s.db, id)
}

func (s *SQLiteStore) GetTemplateBySlug(ctx context.Context, slug string) (*domain.Template, error) {
	return getTemplateBySlug(ctx, s.db, slug)
}

func (s *SQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	return deleteTemplate(ctx, s.db, id)
}

func (s *SQLiteStore) ListTemplates(ctx context.Context, opts ListOptions) ([]domain.Template, error) {
	return listTemplates(ctx, s.db, opts)
}

// =============================================================================
// Deployment Operations
// =============================================================================

// deploymentRow represents a deployment row in the database.
type deploymentRow struct {
	ID          string `db:"id"`
	TemplateID  string `db:"template_id"`
	Token       string `db:"token"`
	ProjectName string `db:"project_name"`
	ComposeSpec string `db:"compose_spec"`
	Volumes     string `db:"volumes"`
	Skipped     int    `db:"skipped"`
	CreatedAt   string `db:"created_at"`
}

func (s *SQLiteStore) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return createDeployment(ctx, s.db, deployment)
}

func (s *SQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.db, id)
}

func (s *SQLiteStore) DeleteDeployment(ctx context.Context, id string) error {
	return deleteDeployment(ctx, s.db, id)
}

func (s *SQLiteStore) ListDeploymentsByTemplate(ctx context.Context, templateID string, opts ListOptions) ([]domain.Deployment, error) {
	return listDeploymentsByTemplate(ctx, s.db, templateID, opts)
}

// =============================================================================
// Transaction Support
// =============================================================================

func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("WithTx", "", "", "failed to begin transaction", ErrTxFailed)
	}

	txS := &txSQLiteStore{tx: tx}

	if err := fn(txS); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return NewStoreError("WithTx", "", "", fmt.Sprintf("rollback failed after error: %v", err), ErrTxFailed)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("WithTx", "", "", "failed to commit transaction", ErrTxFailed)
	}

	return nil
}

// =============================================================================
// Transaction Store
// =============================================================================

// txSQLiteStore implements Store within a transaction.
type txSQLiteStore struct {
	tx *sqlx.Tx
}

func (s *txSQLiteStore) CreateTemplate(ctx context.Context, template *domain.Template) error {
	return createTemplate(ctx, s.tx, template)
}

func (s *txSQLiteStore) GetTemplate(ctx context.Context, id string) (*domain.Template, error) {
	return getTemplate(ctx, s.tx, id)
}

func (s *txSQLiteStore) GetTemplateBySlug(ctx context.Context, slug string) (*domain.Template, error) {
	return getTemplateBySlug(ctx, s.tx, slug)
}

func (s *txSQLiteStore) DeleteTemplate(ctx context.Context, id string) error {
	return deleteTemplate(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListTemplates(ctx context.Context, opts ListOptions) ([]domain.Template, error) {
	return listTemplates(ctx, s.tx, opts)
}

func (s *txSQLiteStore) CreateDeployment(ctx context.Context, deployment *domain.Deployment) error {
	return createDeployment(ctx, s.tx, deployment)
}

func (s *txSQLiteStore) GetDeployment(ctx context.Context, id string) (*domain.Deployment, error) {
	return getDeployment(ctx, s.tx, id)
}

func (s *txSQLiteStore) DeleteDeployment(ctx context.Context, id string) error {
	return deleteDeployment(ctx, s.tx, id)
}

func (s *txSQLiteStore) ListDeploymentsByTemplate(ctx context.Context, templateID string, opts ListOptions) ([]domain.Deployment, error) {
	return listDeploymentsByTemplate(ctx, s.tx, templateID, opts)
}

func (s *txSQLiteStore) WithTx(ctx context.Context, fn func(Store) error) error {
	// Already in a transaction, just run the function
	return fn(s)
}

func (s *txSQLiteStore) Close() error {
	// No-op for tx store
	return nil
}

// =============================================================================
// Shared Implementation Functions
// =============================================================================

func createTemplate(ctx context.Context, exec executor, template *domain.Template) error {
	query := `
		INSERT INTO templates (
			id, name, slug, compose_spec, created_at, updated_at
		) VALUES (
			:id, :name, :slug, :compose_spec, :created_at, :updated_at
		)`

	row := map[string]any{
		"id":           template.ID,
		"name":         template.Name,
		"slug":         template.Slug,
		"compose_spec": template.ComposeSpec,
		"created_at":   template.CreatedAt.Format(time.RFC3339),
		"updated_at":   template.UpdatedAt.Format(time.RFC3339),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if v, ok := constraintViolation(err); ok {
			switch v.columns {
			case "templates.id":
				return NewStoreError("CreateTemplate", EntityTemplate, template.ID, "template with this ID already exists", ErrDuplicateID)
			case "templates.slug":
				return NewStoreError("CreateTemplate", EntityTemplate, template.Slug, "slug is taken by another template", ErrDuplicateSlug)
			}
		}
		return NewStoreError("CreateTemplate", EntityTemplate, template.ID, err.Error(), err)
	}

	return nil
}

func getTemplate(ctx context.Context, exec executor, id string) (*domain.Template, error) {
	query := `SELECT * FROM templates WHERE id = ?`

	var row templateRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetTemplate", EntityTemplate, id, "template not found", ErrNotFound)
		}
		return nil, NewStoreError("GetTemplate", EntityTemplate, id, err.Error(), err)
	}

	return rowToTemplate(&row), nil
}

func getTemplateBySlug(ctx context.Context, exec executor, slug string) (*domain.Template, error) {
	query := `SELECT * FROM templates WHERE slug = ?`

	var row templateRow
	err := exec.GetContext(ctx, &row, query, slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetTemplateBySlug", EntityTemplate, slug, "template not found", ErrNotFound)
		}
		return nil, NewStoreError("GetTemplateBySlug", EntityTemplate, slug, err.Error(), err)
	}

	return rowToTemplate(&row), nil
}

func deleteTemplate(ctx context.Context, exec executor, id string) error {
	query := `DELETE FROM templates WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		if v, ok := constraintViolation(err); ok && v.foreignKey {
			return NewStoreError("DeleteTemplate", EntityTemplate, id, "template still has deployments", ErrTemplateInUse)
		}
		return NewStoreError("DeleteTemplate", EntityTemplate, id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteTemplate", EntityTemplate, id, "template not found", ErrNotFound)
	}

	return nil
}

func listTemplates(ctx context.Context, exec executor, opts ListOptions) ([]domain.Template, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM templates ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`

	var rows []templateRow
	err := exec.SelectContext(ctx, &rows, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListTemplates", EntityTemplate, "", err.Error(), err)
	}

	templates := make([]domain.Template, 0, len(rows))
	for _, row := range rows {
		templates = append(templates, *rowToTemplate(&row))
	}

	return templates, nil
}

func createDeployment(ctx context.Context, exec executor, deployment *domain.Deployment) error {
	volumes := deployment.Volumes
	if volumes == nil {
		volumes = []domain.VolumeRename{}
	}
	volumesJSON, err := json.Marshal(volumes)
	if err != nil {
		return NewStoreError("CreateDeployment", EntityDeployment, deployment.ID, "failed to serialize volumes", ErrInvalidData)
	}

	query := `
		INSERT INTO deployments (
			id, template_id, token, project_name, compose_spec, volumes, skipped, created_at
		) VALUES (
			:id, :template_id, :token, :project_name, :compose_spec, :volumes, :skipped, :created_at
		)`

	row := map[string]any{
		"id":           deployment.ID,
		"template_id":  deployment.TemplateID,
		"token":        deployment.Token,
		"project_name": deployment.ProjectName,
		"compose_spec": deployment.ComposeSpec,
		"volumes":      string(volumesJSON),
		"skipped":      deployment.Skipped,
		"created_at":   deployment.CreatedAt.Format(time.RFC3339),
	}

	_, err = exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if v, ok := constraintViolation(err); ok {
			switch {
			case v.foreignKey:
				return NewStoreError("CreateDeployment", EntityDeployment, deployment.ID, "template "+deployment.TemplateID+" not found", ErrUnknownTemplate)
			case v.columns == "deployments.id":
				return NewStoreError("CreateDeployment", EntityDeployment, deployment.ID, "deployment with this ID already exists", ErrDuplicateID)
			case v.columns == "deployments.template_id, deployments.token":
				return NewStoreError("CreateDeployment", EntityDeployment, deployment.Token, "token is already used by this template", ErrDuplicateToken)
			}
		}
		return NewStoreError("CreateDeployment", EntityDeployment, deployment.ID, err.Error(), err)
	}

	return nil
}

func getDeployment(ctx context.Context, exec executor, id string) (*domain.Deployment, error) {
	query := `SELECT * FROM deployments WHERE id = ?`

	var row deploymentRow
	err := exec.GetContext(ctx, &row, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetDeployment", EntityDeployment, id, "deployment not found", ErrNotFound)
		}
		return nil, NewStoreError("GetDeployment", EntityDeployment, id, err.Error(), err)
	}

	return rowToDeployment(&row)
}

func deleteDeployment(ctx context.Context, exec executor, id string) error {
	query := `DELETE FROM deployments WHERE id = ?`

	result, err := exec.ExecContext(ctx, query, id)
	if err != nil {
		return NewStoreError("DeleteDeployment", EntityDeployment, id, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteDeployment", EntityDeployment, id, "deployment not found", ErrNotFound)
	}

	return nil
}

func listDeploymentsByTemplate(ctx context.Context, exec executor, templateID string, opts ListOptions) ([]domain.Deployment, error) {
	opts = opts.Normalize()
	query := `SELECT * FROM deployments WHERE template_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`

	var rows []deploymentRow
	err := exec.SelectContext(ctx, &rows, query, templateID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, NewStoreError("ListDeploymentsByTemplate", EntityDeployment, "", err.Error(), err)
	}

	deployments := make([]domain.Deployment, 0, len(rows))
	for _, row := range rows {
		deployment, err := rowToDeployment(&row)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *deployment)
	}

	return deployments, nil
}

// =============================================================================
// Row Conversion Functions
// =============================================================================

// rowToTemplate converts a database row to a domain.Template.
func rowToTemplate(row *templateRow) *domain.Template {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339, row.UpdatedAt)

	return &domain.Template{
		ID:          row.ID,
		Name:        row.Name,
		Slug:        row.Slug,
		ComposeSpec: row.ComposeSpec,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
	}
}

// rowToDeployment converts a database row to a domain.Deployment.
func rowToDeployment(row *deploymentRow) (*domain.Deployment, error) {
	createdAt, _ := time.Parse(time.RFC3339, row.CreatedAt)

	volumes := []domain.VolumeRename{}
	if row.Volumes != "" && row.Volumes != "null" {
		if err := json.Unmarshal([]byte(row.Volumes), &volumes); err != nil {
			return nil, NewStoreError("rowToDeployment", EntityDeployment, row.ID, "failed to parse volumes", ErrInvalidData)
		}
	}

	return &domain.Deployment{
		ID:          row.ID,
		TemplateID:  row.TemplateID,
		Token:       row.Token,
		ProjectName: row.ProjectName,
		ComposeSpec: row.ComposeSpec,
		Volumes:     volumes,
		Skipped:     row.Skipped,
		CreatedAt:   createdAt,
	}, nil
}
