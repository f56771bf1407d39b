package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"memberpass/internal/pass/models"
	id "memberpass/pkg/domain"
	dErrors "memberpass/pkg/domain-errors"
	"memberpass/pkg/platform/httputil"
	request "memberpass/pkg/platform/middleware/request"
	"memberpass/pkg/platform/middleware/requesttime"
)

// Service is the pass application surface used by the HTTP layer.
type Service interface {
	InitializePlatform(ctx context.Context, authority id.PrincipalID, bronzePrice, silverPrice, goldPrice uint64) (*models.PlatformConfig, error)
	RegisterAssetGroups(ctx context.Context, authority id.PrincipalID, bronzeURI, silverURI, goldURI string) (*models.PlatformConfig, error)
	OpenMint(ctx context.Context, authority id.PrincipalID, at time.Time) (*models.PlatformConfig, error)
	Platform(ctx context.Context) (*models.PlatformConfig, error)
	MintPass(ctx context.Context, principal id.PrincipalID, rawTier int, assetGroup id.AssetGroupID) (*models.MemberPass, error)
	VerifyPass(ctx context.Context, principal id.PrincipalID) (models.Tier, error)
	RequireTier(ctx context.Context, principal id.PrincipalID, minTier models.Tier) (models.Tier, error)
	GetPass(ctx context.Context, principal id.PrincipalID) (*models.MemberPass, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// RegisterPublic mounts the unauthenticated read routes.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Get("/platform", h.HandleGetPlatform)
	r.Get("/passes/{principal}", h.HandleGetPass)
}

// RegisterMember mounts routes acting on the authenticated principal.
func (h *Handler) RegisterMember(r chi.Router) {
	r.Post("/passes", h.HandleMintPass)
	r.Get("/passes/me/verify", h.HandleVerifyPass)
	r.Get("/passes/me/access/{min_tier}", h.HandleRequireTier)
}

// RegisterAdmin mounts the authority routes. The caller principal is checked
// against the platform authority by the service.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Post("/admin/platform", h.HandleInitializePlatform)
	r.Post("/admin/platform/asset-groups", h.HandleRegisterAssetGroups)
	r.Post("/admin/platform/open-mint", h.HandleOpenMint)
}

func (h *Handler) HandleInitializePlatform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	authority, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[InitializePlatformRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cfg, err := h.service.InitializePlatform(ctx, authority, req.BronzePrice, req.SilverPrice, req.GoldPrice)
	if err != nil {
		h.logger.ErrorContext(ctx, "initialize platform failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toPlatformResponse(cfg))
}

func (h *Handler) HandleRegisterAssetGroups(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	authority, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[RegisterAssetGroupsRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	cfg, err := h.service.RegisterAssetGroups(ctx, authority, req.BronzeURI, req.SilverURI, req.GoldURI)
	if err != nil {
		h.logger.ErrorContext(ctx, "register asset groups failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPlatformResponse(cfg))
}

// HandleOpenMint sets the mint opening time; an omitted timestamp opens now.
func (h *Handler) HandleOpenMint(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	authority, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[OpenMintRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	at := requesttime.Now(ctx)
	if req.MintOpenTimestamp != nil {
		at = time.Unix(*req.MintOpenTimestamp, 0).UTC()
	}

	cfg, err := h.service.OpenMint(ctx, authority, at)
	if err != nil {
		h.logger.ErrorContext(ctx, "open mint failed", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, toPlatformResponse(cfg))
}

func (h *Handler) HandleGetPlatform(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	cfg, err := h.service.Platform(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "get platform failed", "error", err, "request_id", request.GetRequestID(ctx))
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPlatformResponse(cfg))
}

func (h *Handler) HandleMintPass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	principal, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[MintPassRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	pass, err := h.service.MintPass(ctx, principal, *req.Tier, req.assetGroup)
	if err != nil {
		h.logger.WarnContext(ctx, "mint pass failed",
			"error", err,
			"error_code", dErrors.CodeOf(err),
			"principal", principal,
			"request_id", requestID,
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, toPassResponse(pass))
}

func (h *Handler) HandleVerifyPass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	principal, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tier, err := h.service.VerifyPass(ctx, principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &VerifyResponse{
		Principal: principal.String(),
		Tier:      int(tier),
		TierName:  tier.String(),
		Valid:     true,
	})
}

func (h *Handler) HandleRequireTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := request.GetRequestID(ctx)
	principal, err := httputil.RequirePrincipal(ctx, h.logger, requestID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	minTier, err := models.ParseTierName(chi.URLParam(r, "min_tier"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	tier, err := h.service.RequireTier(ctx, principal, minTier)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, &AccessResponse{
		Principal:    principal.String(),
		Tier:         tier.String(),
		RequiredTier: minTier.String(),
		Granted:      true,
	})
}

func (h *Handler) HandleGetPass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	principal, err := id.ParsePrincipalID(chi.URLParam(r, "principal"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid principal"))
		return
	}

	pass, err := h.service.GetPass(ctx, principal)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	resp := toPassResponse(pass)
	resp.Expired = pass.IsExpired(requesttime.Now(ctx))
	httputil.WriteJSON(w, http.StatusOK, resp)
}
