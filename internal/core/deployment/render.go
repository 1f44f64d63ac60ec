package deployment

import (
	"fmt"

	"github.com/artpar/composens/internal/core/compose"
)

// =============================================================================
// Rendering
// =============================================================================

// RenderOptions controls Render.
type RenderOptions struct {
	// Slug is the template slug; the compose project is named after it.
	Slug string
	// Token namespaces the deployment. Callers validate it beforehand.
	Token string
	// Environment feeds ${VAR} interpolation when the output is checked.
	Environment map[string]string
}

// Rendering is a template's compose spec rendered for one deployment attempt.
type Rendering struct {
	Token       string
	ProjectName string
	ComposeSpec string
	Result      *compose.Result
	Project     *compose.Project
}

// Render namespaces every declared volume in composeSpec with opts.Token and
// verifies that the output still loads as a compose project whose named-volume
// mounts all resolve. composeSpec itself is left as it is.
func Render(composeSpec string, opts RenderOptions) (*Rendering, error) {
	doc, err := compose.ParseDocument([]byte(composeSpec))
	if err != nil {
		return nil, err
	}

	result, err := compose.NamespaceVolumes(doc, opts.Token)
	if err != nil {
		return nil, err
	}

	out, err := result.Document.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal rendered compose spec: %w", err)
	}

	projectName := ProjectName(opts.Slug, opts.Token)
	project, err := compose.LoadProject(out, compose.LoadOptions{
		ProjectName: projectName,
		Environment: opts.Environment,
	})
	if err != nil {
		return nil, err
	}
	if err := project.CheckVolumeReferences(); err != nil {
		return nil, err
	}

	return &Rendering{
		Token:       opts.Token,
		ProjectName: project.Name,
		ComposeSpec: string(out),
		Result:      result,
		Project:     project,
	}, nil
}

// EngineVolumeNames maps each namespaced volume to the name the engine will
// give it once the project is up.
func (r *Rendering) EngineVolumeNames() map[string]string {
	declared := make(map[string]compose.ProjectVolume, len(r.Project.Volumes))
	for _, v := range r.Project.Volumes {
		declared[v.Name] = v
	}

	names := make(map[string]string, len(r.Result.Renamed))
	for _, v := range r.Result.Renamed {
		vol, ok := declared[v.To]
		if !ok {
			vol = compose.ProjectVolume{Name: v.To}
		}
		names[v.To] = EngineVolumeNameFor(r.ProjectName, vol)
	}
	return names
}
