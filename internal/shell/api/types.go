package api

import (
	"time"

	"github.com/artpar/composens/internal/core/compose"
	"github.com/artpar/composens/internal/core/domain"
)

// =============================================================================
// Request Types
// =============================================================================

// NamespaceRequest is the request body for a one-off rewrite.
type NamespaceRequest struct {
	ComposeSpec string `json:"compose_spec"`
	Token       string `json:"token,omitempty"` // generated when empty
}

// CreateTemplateRequest is the request body for creating a template.
type CreateTemplateRequest struct {
	Name        string `json:"name"`
	ComposeSpec string `json:"compose_spec"`
	// Environment is used to interpolate ${VAR} while the spec is checked.
	Environment map[string]string `json:"environment,omitempty"`
}

// CreateDeploymentRequest is the request body for rendering a deployment.
type CreateDeploymentRequest struct {
	Token       string            `json:"token,omitempty"` // generated when empty
	Environment map[string]string `json:"environment,omitempty"`
}

// =============================================================================
// Response Types
// =============================================================================

// NamespaceResponse is the response for a one-off rewrite.
type NamespaceResponse struct {
	Token       string                 `json:"token"`
	ComposeSpec string                 `json:"compose_spec"`
	Renamed     []compose.VolumeRename `json:"renamed"`
	Rewritten   []compose.MountRewrite `json:"rewritten"`
	Skipped     []SkippedResponse      `json:"skipped"`
}

// SkippedResponse describes a mount entry left untouched by the rewriter.
type SkippedResponse struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// TemplateResponse is the response for template operations.
type TemplateResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	ComposeSpec string    `json:"compose_spec"`
	Services    []string  `json:"services"`
	Volumes     []string  `json:"volumes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DeploymentResponse is the response for deployment operations.
type DeploymentResponse struct {
	ID          string                `json:"id"`
	TemplateID  string                `json:"template_id"`
	Token       string                `json:"token"`
	ProjectName string                `json:"project_name"`
	ComposeSpec string                `json:"compose_spec"`
	Volumes     []domain.VolumeRename `json:"volumes"`
	Skipped     int                   `json:"skipped_mounts"`
	CreatedAt   time.Time             `json:"created_at"`
}

// CreateDeploymentResponse adds the rewrite report to a new deployment.
type CreateDeploymentResponse struct {
	DeploymentResponse
	Skipped []SkippedResponse `json:"skipped"`
}

// VolumeStatusResponse is the engine-side state of one deployment volume.
type VolumeStatusResponse struct {
	From       string `json:"from"`
	To         string `json:"to"`
	EngineName string `json:"engine_name"`
	Exists     bool   `json:"exists"`
	Driver     string `json:"driver,omitempty"`
	Mountpoint string `json:"mountpoint,omitempty"`
}

// DeploymentVolumesResponse is the response for a deployment's engine volumes.
type DeploymentVolumesResponse struct {
	DeploymentID string                 `json:"deployment_id"`
	ProjectName  string                 `json:"project_name"`
	Volumes      []VolumeStatusResponse `json:"volumes"`
	// Unexpected lists project volumes that no template volume maps to.
	Unexpected []string `json:"unexpected"`
}

// ListTemplatesResponse is the response for listing templates.
type ListTemplatesResponse struct {
	Templates []TemplateResponse `json:"templates"`
	Total     int                `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// ListDeploymentsResponse is the response for listing deployments.
type ListDeploymentsResponse struct {
	Deployments []DeploymentResponse `json:"deployments"`
	Total       int                  `json:"total"`
	Limit       int                  `json:"limit"`
	Offset      int                  `json:"offset"`
}

// ErrorResponse is the error response format.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse is the readiness check response.
type ReadyResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}
