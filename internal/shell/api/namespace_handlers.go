package api

import (
	"encoding/json"
	"net/http"

	"github.com/artpar/composens/internal/core/compose"
	"github.com/artpar/composens/internal/core/validation"
)

// =============================================================================
// Namespace Handlers
// =============================================================================

// handleNamespace rewrites a compose spec without storing anything. The
// output is not loaded as a project; only structural problems are errors.
func (h *Handler) handleNamespace(w http.ResponseWriter, r *http.Request) {
	var req NamespaceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}
	if req.ComposeSpec == "" {
		h.writeError(w, http.StatusBadRequest, "compose_spec is required", "validation_error")
		return
	}

	token := req.Token
	if token == "" {
		token = h.newToken()
	} else if err := validation.ValidateToken(token); err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_token")
		return
	}

	doc, err := compose.ParseDocument([]byte(req.ComposeSpec))
	if err != nil {
		status, code := composeErrorStatus(err)
		h.writeError(w, status, err.Error(), code)
		return
	}

	result, err := compose.NamespaceVolumes(doc, token)
	if err != nil {
		status, code := composeErrorStatus(err)
		h.writeError(w, status, err.Error(), code)
		return
	}
	h.logSkipped(result, "token", token)

	out, err := result.Document.Marshal()
	if err != nil {
		h.logger.Error("failed to marshal compose spec", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to render compose spec", "internal_error")
		return
	}

	h.writeJSON(w, http.StatusOK, NamespaceResponse{
		Token:       token,
		ComposeSpec: string(out),
		Renamed:     result.Renamed,
		Rewritten:   result.Rewritten,
		Skipped:     toSkippedResponses(result.Skipped),
	})
}
