package docker

import "context"

// =============================================================================
// Volume Types
// =============================================================================

// VolumeInfo describes a volume as the engine reports it.
type VolumeInfo struct {
	Name       string            `json:"name"`
	Driver     string            `json:"driver"`
	Mountpoint string            `json:"mountpoint,omitempty"`
	Scope      string            `json:"scope,omitempty"`
	CreatedAt  string            `json:"created_at,omitempty"`
	Labels     map[string]string `json:"labels,omitempty"`

	// Project and ComposeVolume come from the compose labels: the project
	// that created the volume and the key it was declared under.
	Project       string `json:"project,omitempty"`
	ComposeVolume string `json:"compose_volume,omitempty"`
}

// =============================================================================
// Client Interface
// =============================================================================

// Client defines the read-only engine operations used to inspect the volumes
// a deployment's compose project owns.
type Client interface {
	ListProjectVolumes(ctx context.Context, project string) ([]VolumeInfo, error)
	InspectVolume(ctx context.Context, name string) (*VolumeInfo, error)

	// Health operations
	Ping(ctx context.Context) error
	Close() error
}

// =============================================================================
// Label Constants
// =============================================================================

// Labels the compose implementation puts on every volume it creates.
const (
	LabelProject = "com.docker.compose.project"
	LabelVolume  = "com.docker.compose.volume"
)
