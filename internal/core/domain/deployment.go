package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Deployment Errors
// =============================================================================

var (
	ErrTokenRequired   = errors.New("deployment token is required")
	ErrProjectRequired = errors.New("deployment project name is required")
)

// =============================================================================
// Deployment
// =============================================================================

// Deployment is one rendering of a template: the template's compose document
// with every declared volume namespaced by Token. Two deployments of the same
// template never share a token, so their volumes never collide.
type Deployment struct {
	ID          string         `json:"id"`
	TemplateID  string         `json:"template_id"`
	Token       string         `json:"token"`
	ProjectName string         `json:"project_name"`
	ComposeSpec string         `json:"compose_spec"`
	Volumes     []VolumeRename `json:"volumes"`
	Skipped     int            `json:"skipped_mounts"`
	CreatedAt   time.Time      `json:"created_at"`
}

// VolumeRename records the namespaced name a template volume got in a
// deployment.
type VolumeRename struct {
	From string `json:"from"`
	To   string `json:"to"`
	// EngineName is what the container engine calls the volume. Records
	// written before it was tracked leave it empty.
	EngineName string `json:"engine_name,omitempty"`
}

// NewDeployment creates a deployment record for a rendered compose spec.
func NewDeployment(template Template, token, projectName, composeSpec string, volumes []VolumeRename, skipped int) (*Deployment, error) {
	if token == "" {
		return nil, ErrTokenRequired
	}
	if projectName == "" {
		return nil, ErrProjectRequired
	}
	if volumes == nil {
		volumes = []VolumeRename{}
	}

	return &Deployment{
		ID:          "depl_" + uuid.New().String()[:8],
		TemplateID:  template.ID,
		Token:       token,
		ProjectName: projectName,
		ComposeSpec: composeSpec,
		Volumes:     volumes,
		Skipped:     skipped,
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// VolumeName returns the namespaced name of a template volume, or "" when the
// deployment has no such volume.
func (d *Deployment) VolumeName(original string) string {
	for _, v := range d.Volumes {
		if v.From == original {
			return v.To
		}
	}
	return ""
}
