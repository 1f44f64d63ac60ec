package compose

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const projectSpec = `
services:
  db:
    image: postgres:${PG_VERSION}
    volumes:
      - db-data:/var/lib/postgresql/data
      - ./init:/docker-entrypoint-initdb.d:ro
  app:
    image: app
    volumes:
      - type: tmpfs
        target: /tmp
volumes:
  db-data:
    driver: local
  archive:
    external: true
`

// =============================================================================
// LoadProject Tests
// =============================================================================

func TestLoadProject_Summary(t *testing.T) {
	project, err := LoadProject([]byte(projectSpec), LoadOptions{
		ProjectName: "Billing Stack",
		Environment: map[string]string{"PG_VERSION": "16"},
	})
	require.NoError(t, err)

	assert.Equal(t, "billingstack", project.Name)

	require.Len(t, project.Services, 2)
	assert.Equal(t, "app", project.Services[0].Name)
	assert.Equal(t, "db", project.Services[1].Name)

	db := project.Services[1]
	assert.Equal(t, "postgres:16", db.Image)
	require.Len(t, db.Mounts, 2)
	assert.Equal(t, "volume", db.Mounts[0].Type)
	assert.Equal(t, "db-data", db.Mounts[0].Source)
	assert.Equal(t, "/var/lib/postgresql/data", db.Mounts[0].Target)
	assert.Equal(t, "bind", db.Mounts[1].Type)
	assert.True(t, db.Mounts[1].ReadOnly)

	assert.Equal(t, []ProjectVolume{
		{Name: "archive", External: true},
		{Name: "db-data", Driver: "local"},
	}, project.Volumes)
	assert.Equal(t, []string{"archive", "db-data"}, project.VolumeNames())

	assert.NoError(t, project.CheckVolumeReferences())
}

func TestLoadProject_VolumeNameOverride(t *testing.T) {
	project, err := LoadProject([]byte(`
services:
  db:
    image: postgres
    volumes:
      - db-data:/var/lib/postgresql/data
volumes:
  db-data:
    name: ${DB_VOLUME}
`), LoadOptions{ProjectName: "billing", Environment: map[string]string{"DB_VOLUME": "billing-db"}})
	require.NoError(t, err)

	assert.Equal(t, []ProjectVolume{{Name: "db-data", NameOverride: "billing-db"}}, project.Volumes)
}

func TestLoadProject_DefaultName(t *testing.T) {
	project, err := LoadProject([]byte("services:\n  web:\n    image: nginx\n"), LoadOptions{})
	require.NoError(t, err)
	assert.Equal(t, DefaultProjectName, project.Name)
}

func TestLoadProject_Empty(t *testing.T) {
	_, err := LoadProject([]byte("  "), LoadOptions{})
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestLoadProject_InvalidYAML(t *testing.T) {
	_, err := LoadProject([]byte("services: [\n"), LoadOptions{})
	assert.ErrorIs(t, err, ErrInvalidYAML)
}

func TestLoadProject_NoServices(t *testing.T) {
	_, err := LoadProject([]byte("services: {}"), LoadOptions{})
	assert.ErrorIs(t, err, ErrNoServices)
}

func TestLoadProject_SchemaViolation(t *testing.T) {
	_, err := LoadProject([]byte("services:\n  web:\n    image: nginx\n    restart: [always]\n"), LoadOptions{})
	assert.ErrorIs(t, err, ErrInvalidProject)
}

// =============================================================================
// Reference Check Tests
// =============================================================================

func TestCheckVolumeReferences(t *testing.T) {
	project := &Project{
		Services: []ProjectService{
			{Name: "web", Mounts: []ProjectMount{
				{Type: "bind", Source: "/srv/www", Target: "/www"},
				{Type: "volume", Source: "data/sub", Target: "/sub"},
				{Type: "volume", Target: "/anon"},
				{Type: "tmpfs", Target: "/tmp"},
			}},
		},
		Volumes: []ProjectVolume{{Name: "data"}},
	}
	assert.NoError(t, project.CheckVolumeReferences())

	project.Services[0].Mounts = append(project.Services[0].Mounts,
		ProjectMount{Type: "volume", Source: "data-extra", Target: "/extra"})

	err := project.CheckVolumeReferences()
	assert.ErrorIs(t, err, ErrUndeclaredVolume)
	assert.Contains(t, err.Error(), "services.web.volumes[4]")
	assert.Contains(t, err.Error(), `"data-extra"`)
}
