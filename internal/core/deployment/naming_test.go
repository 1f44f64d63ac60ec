package deployment

import (
	"regexp"
	"testing"

	"github.com/artpar/composens/internal/core/compose"
	"github.com/stretchr/testify/assert"
)

// =============================================================================
// NewNamespaceToken Tests
// =============================================================================

func TestNewNamespaceToken_Format(t *testing.T) {
	token := NewNamespaceToken()
	assert.Len(t, token, TokenLength)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9]+$`), token)
}

func TestNewNamespaceToken_Unique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token := NewNamespaceToken()
		assert.False(t, seen[token], "duplicate token %s", token)
		seen[token] = true
	}
}

// =============================================================================
// ProjectName Tests
// =============================================================================

func TestProjectName_Simple(t *testing.T) {
	got := ProjectName("wordpress-blog", "a1b2c3d4")
	assert.Equal(t, "wordpress-blog-a1b2c3d4", got)
}

func TestProjectName_EmptySlug(t *testing.T) {
	got := ProjectName("", "a1b2c3d4")
	assert.Equal(t, "a1b2c3d4", got)
}

// =============================================================================
// EngineVolumeName Tests
// =============================================================================

func TestEngineVolumeName_Simple(t *testing.T) {
	got := EngineVolumeName("blog-a1b2c3d4", "db-data-a1b2c3d4")
	assert.Equal(t, "blog-a1b2c3d4_db-data-a1b2c3d4", got)
}

func TestEngineVolumeName_WithUnderscore(t *testing.T) {
	got := EngineVolumeName("blog", "postgres_data")
	assert.Equal(t, "blog_postgres_data", got)
}

func TestEngineVolumeNameFor(t *testing.T) {
	tests := []struct {
		name     string
		volume   compose.ProjectVolume
		expected string
	}{
		{"project scoped", compose.ProjectVolume{Name: "db-data-a1b2c3d4"}, "blog-a1b2c3d4_db-data-a1b2c3d4"},
		{"name override", compose.ProjectVolume{Name: "db-data-a1b2c3d4", NameOverride: "blog-db"}, "blog-db"},
		{"external", compose.ProjectVolume{Name: "media-a1b2c3d4", External: true}, "media-a1b2c3d4"},
		{"external with name", compose.ProjectVolume{Name: "media-a1b2c3d4", External: true, NameOverride: "shared-media"}, "shared-media"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, EngineVolumeNameFor("blog-a1b2c3d4", tt.volume))
		})
	}
}
