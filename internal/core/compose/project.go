package compose

import (
	"context"
	"sort"
	"strings"

	"github.com/compose-spec/compose-go/v2/loader"
	"github.com/compose-spec/compose-go/v2/types"
	"gopkg.in/yaml.v3"
)

// DefaultProjectName is used when LoadProject is given no project name.
const DefaultProjectName = "composens"

// =============================================================================
// Project Types
// =============================================================================

// Project is a validated summary of a compose project as the container engine
// would see it.
type Project struct {
	Name     string           `json:"name"`
	Services []ProjectService `json:"services"`
	Volumes  []ProjectVolume  `json:"volumes"`
}

// ProjectService is a service and its mounts, after compose normalization.
type ProjectService struct {
	Name   string         `json:"name"`
	Image  string         `json:"image,omitempty"`
	Mounts []ProjectMount `json:"mounts,omitempty"`
}

// ProjectMount is a service mount in long form.
type ProjectMount struct {
	Type     string `json:"type"`
	Source   string `json:"source,omitempty"`
	Target   string `json:"target"`
	ReadOnly bool   `json:"read_only,omitempty"`
}

// ProjectVolume is a declared top-level volume.
type ProjectVolume struct {
	Name string `json:"name"`
	// NameOverride is an explicit "name:"; the engine uses it verbatim.
	NameOverride string `json:"name_override,omitempty"`
	Driver       string `json:"driver,omitempty"`
	External     bool   `json:"external"`
}

// LoadOptions controls LoadProject.
type LoadOptions struct {
	ProjectName string
	// Environment feeds ${VAR} interpolation. Unset variables become empty.
	Environment map[string]string
}

// =============================================================================
// Loading
// =============================================================================

// LoadProject loads compose YAML the way the container engine's compose
// implementation does and returns a summary of it.
func LoadProject(content []byte, opts LoadOptions) (*Project, error) {
	if strings.TrimSpace(string(content)) == "" {
		return nil, ErrEmptyInput
	}

	// Parse YAML into a map first
	var dict map[string]interface{}
	if err := yaml.Unmarshal(content, &dict); err != nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}
	if dict == nil {
		return nil, NewParseError("", "invalid YAML syntax", ErrInvalidYAML)
	}

	name := loader.NormalizeProjectName(opts.ProjectName)
	if name == "" {
		name = DefaultProjectName
	}

	project, err := loader.LoadWithContext(context.Background(), types.ConfigDetails{
		ConfigFiles: []types.ConfigFile{
			{
				Content: content,
				Config:  dict,
			},
		},
		Environment: types.Mapping(opts.Environment),
	}, func(o *loader.Options) {
		o.SetProjectName(name, true)
		o.SkipNormalization = true
		o.SkipExtends = true
		// Sub-path mounts ("vol/dir:/x") fail the loader's own check;
		// CheckVolumeReferences replaces it.
		o.SkipConsistencyCheck = true
	})
	if err != nil {
		return nil, NewParseError("", err.Error(), ErrInvalidProject)
	}

	if len(project.Services) == 0 {
		return nil, ErrNoServices
	}

	return summarize(project), nil
}

func summarize(project *types.Project) *Project {
	p := &Project{
		Name:     project.Name,
		Services: make([]ProjectService, 0, len(project.Services)),
		Volumes:  make([]ProjectVolume, 0, len(project.Volumes)),
	}

	for _, svc := range project.Services {
		s := ProjectService{Name: svc.Name, Image: svc.Image}
		for _, v := range svc.Volumes {
			s.Mounts = append(s.Mounts, ProjectMount{
				Type:     v.Type,
				Source:   v.Source,
				Target:   v.Target,
				ReadOnly: v.ReadOnly,
			})
		}
		p.Services = append(p.Services, s)
	}
	sort.Slice(p.Services, func(i, j int) bool { return p.Services[i].Name < p.Services[j].Name })

	for name, vol := range project.Volumes {
		p.Volumes = append(p.Volumes, ProjectVolume{
			Name:         name,
			NameOverride: vol.Name,
			Driver:       vol.Driver,
			External:     bool(vol.External),
		})
	}
	sort.Slice(p.Volumes, func(i, j int) bool { return p.Volumes[i].Name < p.Volumes[j].Name })

	return p
}

// =============================================================================
// Validation
// =============================================================================

// VolumeNames returns the declared volume names, sorted.
func (p *Project) VolumeNames() []string {
	names := make([]string, 0, len(p.Volumes))
	for _, v := range p.Volumes {
		names = append(names, v.Name)
	}
	return names
}

// CheckVolumeReferences verifies that every named-volume mount resolves to a
// declared volume. The volume-name component is taken before any sub-path.
func (p *Project) CheckVolumeReferences() error {
	declared := NewVolumeSet(p.VolumeNames()...)
	for _, svc := range p.Services {
		for i, m := range svc.Mounts {
			if m.Type != types.VolumeTypeVolume || m.Source == "" {
				continue
			}
			name, _ := splitVolumeSource(m.Source)
			if !declared.Has(name) {
				return NewParseError(mountField(svc.Name, i), "volume \""+name+"\" is not declared", ErrUndeclaredVolume)
			}
		}
	}
	return nil
}
