package deployment

import (
	"fmt"
	"strings"

	"github.com/artpar/composens/internal/core/compose"
	"github.com/google/uuid"
)

// TokenLength is the length of generated namespace tokens.
const TokenLength = 8

// =============================================================================
// Namespace Tokens
// =============================================================================

// NewNamespaceToken returns a random lowercase alphanumeric token of
// TokenLength characters, safe to embed in volume and project names.
func NewNamespaceToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:TokenLength]
}

// =============================================================================
// Resource Naming Functions
// =============================================================================

// ProjectName generates the compose project name for a deployment.
// Pattern: {templateSlug}-{token}
//
// Example:
//
//	ProjectName("wordpress-blog", "a1b2c3d4") // returns "wordpress-blog-a1b2c3d4"
func ProjectName(templateSlug, token string) string {
	if templateSlug == "" {
		return token
	}
	return fmt.Sprintf("%s-%s", templateSlug, token)
}

// EngineVolumeName generates the name the container engine gives a volume
// declared in a compose project.
// Pattern: {projectName}_{volumeName}
//
// Example:
//
//	EngineVolumeName("blog-a1b2c3d4", "db-data-a1b2c3d4") // returns "blog-a1b2c3d4_db-data-a1b2c3d4"
func EngineVolumeName(projectName, volumeName string) string {
	return fmt.Sprintf("%s_%s", projectName, volumeName)
}

// EngineVolumeNameFor returns the name the engine gives a declared volume. An
// explicit name is used verbatim and an external volume keeps its key; any
// other volume follows EngineVolumeName.
func EngineVolumeNameFor(projectName string, v compose.ProjectVolume) string {
	switch {
	case v.NameOverride != "":
		return v.NameOverride
	case v.External:
		return v.Name
	}
	return EngineVolumeName(projectName, v.Name)
}
