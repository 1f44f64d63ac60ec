package api

import (
	"errors"
	"net/http"

	coredeployment "github.com/artpar/composens/internal/core/deployment"
	"github.com/artpar/composens/internal/shell/docker"
)

// =============================================================================
// Volume Handlers
// =============================================================================

// handleDeploymentVolumes reports, for each namespaced volume of a deployment,
// whether the engine has created it under the deployment's project.
func (h *Handler) handleDeploymentVolumes(w http.ResponseWriter, r *http.Request) {
	if h.docker == nil {
		h.writeError(w, http.StatusServiceUnavailable, "docker integration is disabled", "docker_disabled")
		return
	}

	deployment, ok := h.loadDeployment(w, r)
	if !ok {
		return
	}

	volumes, err := h.docker.ListProjectVolumes(r.Context(), deployment.ProjectName)
	if err != nil {
		h.logger.Error("failed to list project volumes", "project", deployment.ProjectName, "error", err)
		h.writeError(w, http.StatusBadGateway, "failed to list volumes", "docker_error")
		return
	}

	resp := DeploymentVolumesResponse{
		DeploymentID: deployment.ID,
		ProjectName:  deployment.ProjectName,
		Volumes:      make([]VolumeStatusResponse, 0, len(deployment.Volumes)),
		Unexpected:   []string{},
	}

	matched := make(map[string]bool, len(volumes))
	for _, v := range deployment.Volumes {
		status := VolumeStatusResponse{
			From:       v.From,
			To:         v.To,
			EngineName: v.EngineName,
		}
		if status.EngineName == "" {
			status.EngineName = coredeployment.EngineVolumeName(deployment.ProjectName, v.To)
		}
		for _, info := range volumes {
			if info.Name == status.EngineName || info.ComposeVolume == v.To {
				status.Exists = true
				status.Driver = info.Driver
				status.Mountpoint = info.Mountpoint
				matched[info.Name] = true
				break
			}
		}
		if !status.Exists && v.EngineName != "" {
			// External volumes carry no project label.
			info, err := h.docker.InspectVolume(r.Context(), v.EngineName)
			switch {
			case err == nil:
				status.Exists = true
				status.Driver = info.Driver
				status.Mountpoint = info.Mountpoint
			case !errors.Is(err, docker.ErrVolumeNotFound):
				h.logger.Error("failed to inspect volume", "volume", v.EngineName, "error", err)
				h.writeError(w, http.StatusBadGateway, "failed to inspect volume", "docker_error")
				return
			}
		}
		resp.Volumes = append(resp.Volumes, status)
	}
	for _, info := range volumes {
		if !matched[info.Name] {
			resp.Unexpected = append(resp.Unexpected, info.Name)
		}
	}

	h.writeJSON(w, http.StatusOK, resp)
}
