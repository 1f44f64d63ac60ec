// Package docker provides a Docker client for looking up compose-managed volumes.
package docker

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sort"

	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/volume"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/tlsconfig"
)

// =============================================================================
// Docker Client Implementation
// =============================================================================

// DockerClient implements the Client interface using the Docker SDK.
type DockerClient struct {
	cli *client.Client
}

// ClientConfig configures NewDockerClient.
type ClientConfig struct {
	// Host overrides DOCKER_HOST when set.
	Host string

	// TLS client certificates for a tcp:// host. Empty paths disable TLS.
	TLSCACert string
	TLSCert   string
	TLSKey    string
}

// NewDockerClient creates a new Docker client.
// If host is empty, it uses the default Docker host from environment.
// On macOS with Docker Desktop, it automatically detects the correct socket.
func NewDockerClient(ctx context.Context, cfg ClientConfig) (*DockerClient, error) {
	host := cfg.Host

	var opts []client.Opt
	opts = append(opts, client.FromEnv)
	opts = append(opts, client.WithAPIVersionNegotiation())

	if cfg.TLSCert != "" || cfg.TLSCACert != "" {
		tlsConfig, err := tlsconfig.Client(tlsconfig.Options{
			CAFile:   cfg.TLSCACert,
			CertFile: cfg.TLSCert,
			KeyFile:  cfg.TLSKey,
		})
		if err != nil {
			return nil, NewDockerError("NewDockerClient", "", "", fmt.Sprintf("invalid TLS configuration: %v", err), ErrConnectionFailed)
		}
		opts = append(opts, client.WithHTTPClient(&http.Client{
			Transport: &http.Transport{TLSClientConfig: tlsConfig},
		}))
	}

	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, NewDockerError("NewDockerClient", "", "", "failed to create client", ErrConnectionFailed)
	}

	if host != "" {
		return &DockerClient{cli: cli}, nil
	}

	// Try to ping with default settings
	if _, pingErr := cli.Ping(ctx); pingErr != nil {
		// If default socket fails, try Docker Desktop socket on macOS
		homeDir, _ := os.UserHomeDir()
		dockerDesktopSocket := "unix://" + homeDir + "/.docker/run/docker.sock"

		cli2, err2 := client.NewClientWithOpts(
			client.WithHost(dockerDesktopSocket),
			client.WithAPIVersionNegotiation(),
		)
		if err2 == nil {
			if _, pingErr2 := cli2.Ping(ctx); pingErr2 == nil {
				cli.Close()
				return &DockerClient{cli: cli2}, nil
			}
			cli2.Close()
		}
	}

	return &DockerClient{cli: cli}, nil
}

// Ping checks if Docker daemon is reachable.
func (d *DockerClient) Ping(ctx context.Context) error {
	_, err := d.cli.Ping(ctx)
	if err != nil {
		return NewDockerError("Ping", "", "", fmt.Sprintf("failed to ping docker: %v", err), ErrConnectionFailed)
	}
	return nil
}

// Close closes the Docker client connection.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// =============================================================================
// Volume Operations
// =============================================================================

// ListProjectVolumes returns the volumes created for a compose project,
// sorted by name.
func (d *DockerClient) ListProjectVolumes(ctx context.Context, project string) ([]VolumeInfo, error) {
	if project == "" {
		return nil, NewDockerError("ListProjectVolumes", "project", "", "project name is empty", ErrProjectRequired)
	}

	resp, err := d.cli.VolumeList(ctx, volume.ListOptions{Filters: ProjectFilters(project)})
	if err != nil {
		return nil, NewDockerError("ListProjectVolumes", "project", project, err.Error(), err)
	}

	volumes := make([]VolumeInfo, 0, len(resp.Volumes))
	for _, v := range resp.Volumes {
		if v == nil {
			continue
		}
		volumes = append(volumes, toVolumeInfo(*v))
	}
	sort.Slice(volumes, func(i, j int) bool { return volumes[i].Name < volumes[j].Name })

	return volumes, nil
}

// InspectVolume returns a single volume by its engine name.
func (d *DockerClient) InspectVolume(ctx context.Context, name string) (*VolumeInfo, error) {
	v, err := d.cli.VolumeInspect(ctx, name)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil, NewDockerError("InspectVolume", "volume", name, "volume not found", ErrVolumeNotFound)
		}
		return nil, NewDockerError("InspectVolume", "volume", name, err.Error(), err)
	}

	info := toVolumeInfo(v)
	return &info, nil
}

// =============================================================================
// Helpers
// =============================================================================

// ProjectFilters selects the volumes labelled as belonging to project.
func ProjectFilters(project string) filters.Args {
	return filters.NewArgs(filters.Arg("label", LabelProject+"="+project))
}

func toVolumeInfo(v volume.Volume) VolumeInfo {
	return VolumeInfo{
		Name:          v.Name,
		Driver:        v.Driver,
		Mountpoint:    v.Mountpoint,
		Scope:         v.Scope,
		CreatedAt:     v.CreatedAt,
		Labels:        v.Labels,
		Project:       v.Labels[LabelProject],
		ComposeVolume: v.Labels[LabelVolume],
	}
}
