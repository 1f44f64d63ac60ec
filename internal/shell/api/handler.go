// Package api provides HTTP handlers for the composens API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/artpar/composens/internal/core/compose"
	coredeployment "github.com/artpar/composens/internal/core/deployment"
	"github.com/artpar/composens/internal/core/domain"
	"github.com/artpar/composens/internal/core/validation"
	"github.com/artpar/composens/internal/shell/docker"
	"github.com/artpar/composens/internal/shell/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// DefaultTokenAttempts is how many generated tokens a deployment request tries
// before giving up on collisions.
const DefaultTokenAttempts = 3

// =============================================================================
// Handler
// =============================================================================

// Options tunes a Handler.
type Options struct {
	// TokenAttempts bounds retries when a generated token is already taken.
	TokenAttempts int
	// NewToken generates namespace tokens. Defaults to
	// deployment.NewNamespaceToken.
	NewToken func() string
}

// Handler provides HTTP handlers for the API.
type Handler struct {
	store  store.Store
	docker docker.Client
	logger *slog.Logger

	tokenAttempts int
	newToken      func() string
}

// NewHandler creates a new API handler. d may be nil, in which case the
// endpoints that inspect engine volumes answer 503.
func NewHandler(s store.Store, d docker.Client, l *slog.Logger, opts Options) *Handler {
	if l == nil {
		l = slog.Default()
	}
	if opts.TokenAttempts <= 0 {
		opts.TokenAttempts = DefaultTokenAttempts
	}
	if opts.NewToken == nil {
		opts.NewToken = coredeployment.NewNamespaceToken
	}
	return &Handler{
		store:         s,
		docker:        d,
		logger:        l,
		tokenAttempts: opts.TokenAttempts,
		newToken:      opts.NewToken,
	}
}

// Routes returns the router with all routes configured.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.jsonContentType)
	r.Use(h.requestIDHeader)

	// Health endpoints
	r.Get("/health", h.handleHealth)
	r.Get("/ready", h.handleReady)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/namespace", h.handleNamespace)

		// Template routes
		r.Route("/templates", func(r chi.Router) {
			r.Post("/", h.handleCreateTemplate)
			r.Get("/", h.handleListTemplates)
			r.Get("/{id}", h.handleGetTemplate)
			r.Delete("/{id}", h.handleDeleteTemplate)
			r.Post("/{id}/deployments", h.handleCreateDeployment)
			r.Get("/{id}/deployments", h.handleListDeployments)
		})

		// Deployment routes
		r.Route("/deployments", func(r chi.Router) {
			r.Get("/{id}", h.handleGetDeployment)
			r.Delete("/{id}", h.handleDeleteDeployment)
			r.Get("/{id}/volumes", h.handleDeploymentVolumes)
		})
	})

	return r
}

// =============================================================================
// Middleware
// =============================================================================

// jsonContentType sets Content-Type header to application/json.
func (h *Handler) jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		next.ServeHTTP(w, r)
	})
}

// requestIDHeader copies the request ID to the response header.
func (h *Handler) requestIDHeader(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if reqID := middleware.GetReqID(r.Context()); reqID != "" {
			w.Header().Set("X-Request-ID", reqID)
		}
		next.ServeHTTP(w, r)
	})
}

// =============================================================================
// Health Handlers
// =============================================================================

// pinger is implemented by stores that can check their connection.
type pinger interface {
	Ping(ctx context.Context) error
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, HealthResponse{Status: "healthy"})
}

func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	ready := true

	checks["database"] = "ok"
	if p, ok := h.store.(pinger); ok {
		if err := p.Ping(r.Context()); err != nil {
			h.logger.Warn("database not ready", "error", err)
			checks["database"] = "failed"
			ready = false
		}
	}

	if h.docker == nil {
		checks["docker"] = "disabled"
	} else if err := h.docker.Ping(r.Context()); err != nil {
		h.logger.Warn("docker not ready", "error", err)
		checks["docker"] = "failed"
		ready = false
	} else {
		checks["docker"] = "ok"
	}

	if !ready {
		h.writeJSON(w, http.StatusServiceUnavailable, ReadyResponse{
			Status: "not_ready",
			Checks: checks,
		})
		return
	}
	h.writeJSON(w, http.StatusOK, ReadyResponse{
		Status: "ready",
		Checks: checks,
	})
}

// =============================================================================
// Template Handlers
// =============================================================================

func (h *Handler) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req CreateTemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	// Validate required fields using core validation
	if field, msg := validation.ValidateCreateTemplateFields(req.Name, req.ComposeSpec); field != "" {
		h.writeError(w, http.StatusBadRequest, msg, "validation_error")
		return
	}

	template, err := domain.NewTemplate(req.Name, req.ComposeSpec)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	// A template must render: check it with a throwaway token.
	if _, err := coredeployment.Render(template.ComposeSpec, coredeployment.RenderOptions{
		Slug:        template.Slug,
		Token:       h.newToken(),
		Environment: req.Environment,
	}); err != nil {
		status, code := composeErrorStatus(err)
		h.writeError(w, status, err.Error(), code)
		return
	}

	if err := h.store.CreateTemplate(r.Context(), template); err != nil {
		if errors.Is(err, store.ErrDuplicateSlug) {
			h.writeError(w, http.StatusConflict, "a template with this name already exists", "slug_taken")
			return
		}
		if store.IsConflict(err) {
			h.writeError(w, http.StatusConflict, err.Error(), "conflict")
			return
		}
		h.logger.Error("failed to create template", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to create template", "internal_error")
		return
	}

	h.logger.Info("template created", "template_id", template.ID, "slug", template.Slug)
	h.writeJSON(w, http.StatusCreated, h.templateToResponse(template))
}

func (h *Handler) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	template, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.templateToResponse(template))
}

func (h *Handler) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	opts := listOptions(r)

	templates, err := h.store.ListTemplates(r.Context(), opts)
	if err != nil {
		h.logger.Error("failed to list templates", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list templates", "internal_error")
		return
	}

	resp := ListTemplatesResponse{
		Templates: make([]TemplateResponse, 0, len(templates)),
		Total:     len(templates),
		Limit:     opts.Limit,
		Offset:    opts.Offset,
	}
	for _, t := range templates {
		resp.Templates = append(resp.Templates, h.templateToResponse(&t))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	template, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}

	// Deployments keep the template alive
	deployments, err := h.store.ListDeploymentsByTemplate(r.Context(), template.ID, store.ListOptions{Limit: 1})
	if err != nil {
		h.logger.Error("failed to check deployments", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete template", "internal_error")
		return
	}
	if len(deployments) > 0 {
		h.writeError(w, http.StatusConflict, "template has deployments", "template_in_use")
		return
	}

	if err := h.store.DeleteTemplate(r.Context(), template.ID); err != nil {
		if errors.Is(err, store.ErrTemplateInUse) {
			h.writeError(w, http.StatusConflict, "template has deployments", "template_in_use")
			return
		}
		h.logger.Error("failed to delete template", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete template", "internal_error")
		return
	}

	h.logger.Info("template deleted", "template_id", template.ID)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Deployment Handlers
// =============================================================================

func (h *Handler) handleCreateDeployment(w http.ResponseWriter, r *http.Request) {
	template, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}

	// The body is optional.
	var req CreateDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid JSON", "validation_error")
		return
	}

	supplied := req.Token != ""
	if supplied {
		if err := validation.ValidateToken(req.Token); err != nil {
			h.writeError(w, http.StatusBadRequest, err.Error(), "invalid_token")
			return
		}
	}

	attempts := h.tokenAttempts
	if supplied {
		attempts = 1
	}

	for attempt := 1; attempt <= attempts; attempt++ {
		token := req.Token
		if !supplied {
			token = h.newToken()
		}

		rendering, err := coredeployment.Render(template.ComposeSpec, coredeployment.RenderOptions{
			Slug:        template.Slug,
			Token:       token,
			Environment: req.Environment,
		})
		if err != nil {
			// The template was checked when it was created; a failure here is
			// down to the environment or to a spec stored before that check.
			h.logger.Warn("template failed to render", "template_id", template.ID, "error", err)
			h.writeError(w, http.StatusUnprocessableEntity, err.Error(), "render_failed")
			return
		}
		h.logSkipped(rendering.Result, "template_id", template.ID)

		deployment, err := domain.NewDeployment(*template, rendering.Token, rendering.ProjectName,
			rendering.ComposeSpec, toDomainRenames(rendering.Result.Renamed, rendering.EngineVolumeNames()), len(rendering.Result.Skipped))
		if err != nil {
			h.logger.Error("failed to build deployment", "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to create deployment", "internal_error")
			return
		}

		err = h.store.CreateDeployment(r.Context(), deployment)
		if errors.Is(err, store.ErrDuplicateToken) {
			if supplied {
				h.writeError(w, http.StatusConflict, "token already used by a deployment of this template", "token_in_use")
				return
			}
			h.logger.Warn("generated token collided, retrying", "template_id", template.ID, "attempt", attempt)
			continue
		}
		if store.IsConflict(err) {
			// The template went away while the deployment was rendered.
			h.writeError(w, http.StatusConflict, err.Error(), "conflict")
			return
		}
		if err != nil {
			h.logger.Error("failed to create deployment", "error", err)
			h.writeError(w, http.StatusInternalServerError, "failed to create deployment", "internal_error")
			return
		}

		h.logger.Info("deployment created",
			"deployment_id", deployment.ID,
			"template_id", template.ID,
			"project", deployment.ProjectName,
			"volumes", len(deployment.Volumes),
		)
		h.writeJSON(w, http.StatusCreated, CreateDeploymentResponse{
			DeploymentResponse: h.deploymentToResponse(deployment),
			Skipped:            toSkippedResponses(rendering.Result.Skipped),
		})
		return
	}

	h.writeError(w, http.StatusConflict, "could not allocate a unique token", "token_exhausted")
}

func (h *Handler) handleGetDeployment(w http.ResponseWriter, r *http.Request) {
	deployment, ok := h.loadDeployment(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, h.deploymentToResponse(deployment))
}

func (h *Handler) handleListDeployments(w http.ResponseWriter, r *http.Request) {
	template, ok := h.loadTemplate(w, r)
	if !ok {
		return
	}
	opts := listOptions(r)

	deployments, err := h.store.ListDeploymentsByTemplate(r.Context(), template.ID, opts)
	if err != nil {
		h.logger.Error("failed to list deployments", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deployments", "internal_error")
		return
	}

	resp := ListDeploymentsResponse{
		Deployments: make([]DeploymentResponse, 0, len(deployments)),
		Total:       len(deployments),
		Limit:       opts.Limit,
		Offset:      opts.Offset,
	}
	for _, d := range deployments {
		resp.Deployments = append(resp.Deployments, h.deploymentToResponse(&d))
	}

	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleDeleteDeployment(w http.ResponseWriter, r *http.Request) {
	deployment, ok := h.loadDeployment(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteDeployment(r.Context(), deployment.ID); err != nil {
		h.logger.Error("failed to delete deployment", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to delete deployment", "internal_error")
		return
	}

	// Engine volumes are left alone; they hold the deployment's data.
	h.logger.Info("deployment deleted", "deployment_id", deployment.ID, "project", deployment.ProjectName)
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// Helpers
// =============================================================================

func (h *Handler) loadTemplate(w http.ResponseWriter, r *http.Request) (*domain.Template, bool) {
	template, err := h.store.GetTemplate(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "template not found", "template_not_found")
			return nil, false
		}
		h.logger.Error("failed to get template", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get template", "internal_error")
		return nil, false
	}
	return template, true
}

func (h *Handler) loadDeployment(w http.ResponseWriter, r *http.Request) (*domain.Deployment, bool) {
	deployment, err := h.store.GetDeployment(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if isNotFound(err) {
			h.writeError(w, http.StatusNotFound, "deployment not found", "deployment_not_found")
			return nil, false
		}
		h.logger.Error("failed to get deployment", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to get deployment", "internal_error")
		return nil, false
	}
	return deployment, true
}

func listOptions(r *http.Request) store.ListOptions {
	opts := store.DefaultListOptions()

	if limit := r.URL.Query().Get("limit"); limit != "" {
		if l, err := strconv.Atoi(limit); err == nil {
			opts.Limit = l
		}
	}
	if offset := r.URL.Query().Get("offset"); offset != "" {
		if o, err := strconv.Atoi(offset); err == nil {
			opts.Offset = o
		}
	}
	return opts.Normalize()
}

// logSkipped warns about every mount entry the rewriter passed through.
func (h *Handler) logSkipped(result *compose.Result, args ...any) {
	for _, s := range result.Skipped {
		h.logger.Warn("mount entry not namespaced",
			append([]any{"field", s.Field(), "reason", s.Reason}, args...)...)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode JSON", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message, code string) {
	h.writeJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

func (h *Handler) templateToResponse(t *domain.Template) TemplateResponse {
	resp := TemplateResponse{
		ID:          t.ID,
		Name:        t.Name,
		Slug:        t.Slug,
		ComposeSpec: t.ComposeSpec,
		Services:    []string{},
		Volumes:     []string{},
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if doc, err := compose.ParseDocument([]byte(t.ComposeSpec)); err == nil {
		resp.Services = append(resp.Services, doc.ServiceNames()...)
		resp.Volumes = append(resp.Volumes, doc.VolumeNames()...)
	}
	return resp
}

func (h *Handler) deploymentToResponse(d *domain.Deployment) DeploymentResponse {
	resp := DeploymentResponse{
		ID:          d.ID,
		TemplateID:  d.TemplateID,
		Token:       d.Token,
		ProjectName: d.ProjectName,
		ComposeSpec: d.ComposeSpec,
		Volumes:     d.Volumes,
		Skipped:     d.Skipped,
		CreatedAt:   d.CreatedAt,
	}
	if resp.Volumes == nil {
		resp.Volumes = []domain.VolumeRename{}
	}
	return resp
}

func toDomainRenames(renames []compose.VolumeRename, engineNames map[string]string) []domain.VolumeRename {
	out := make([]domain.VolumeRename, 0, len(renames))
	for _, v := range renames {
		out = append(out, domain.VolumeRename{From: v.From, To: v.To, EngineName: engineNames[v.To]})
	}
	return out
}

func toSkippedResponses(skipped []compose.SkippedMount) []SkippedResponse {
	out := make([]SkippedResponse, 0, len(skipped))
	for _, s := range skipped {
		out = append(out, SkippedResponse{Field: s.Field(), Reason: s.Reason})
	}
	return out
}

// composeErrorStatus maps a compose parse, rewrite or load failure to an HTTP
// status and error code.
func composeErrorStatus(err error) (int, string) {
	switch {
	case compose.IsStructuralError(err):
		return http.StatusBadRequest, "invalid_compose_structure"
	case errors.Is(err, compose.ErrEmptyInput), errors.Is(err, compose.ErrInvalidYAML):
		return http.StatusBadRequest, "invalid_compose"
	default:
		return http.StatusUnprocessableEntity, "invalid_project"
	}
}

// isNotFound checks if an error is a not found error.
func isNotFound(err error) bool {
	var storeErr *store.StoreError
	if errors.As(err, &storeErr) {
		return errors.Is(storeErr.Unwrap(), store.ErrNotFound)
	}
	return false
}
