package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/overzoom"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/repository/source"
	"github.com/jaennil/guide_helper/backend/overzoom/internal/usecase"
)

func providerResponse(p *usecase.Provider) dto.ProviderResponse {
	return dto.ProviderResponse{
		Store:        p.Store.Name(),
		PathTemplate: p.PathTemplate(),
		TileSize:     p.TileSize,
		FloorZoom:    p.FloorZoom,
		OutputFormat: string(p.Format),
		Quality:      p.Quality,
	}
}

func remoteProviderResponse(s *source.RemoteSource) dto.RemoteProviderResponse {
	cfg := s.Config()
	return dto.RemoteProviderResponse{
		URLTemplate: cfg.URLTemplate,
		MinimumZ:    cfg.MinimumZ,
		MaximumZ:    cfg.MaximumZ,
	}
}

func (h *Handler) GetProvider(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusOK, "local provider", providerResponse(h.tileUseCase.Provider()))
}

// PutProvider replaces the local provider. Tiles rendered with the previous
// configuration are stale from now on; clients must drop their tile cache.
func (h *Handler) PutProvider(c *gin.Context) {
	l := requestLogger(c)

	var req dto.ProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "failed to decode request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	format, err := overzoom.ParseFormat(req.OutputFormat)
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	p, err := h.tileUseCase.Reconfigure(usecase.Settings{
		PathTemplate: req.PathTemplate,
		TileSize:     req.TileSize,
		FloorZoom:    *req.FloorZoom,
		Format:       format,
		Quality:      req.Quality,
	})
	if err != nil {
		if errors.Is(err, usecase.ErrInvalidProvider) || errors.Is(err, usecase.ErrTemplateUnsupported) {
			h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
			return
		}
		l.Error("failed to reconfigure local provider", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "local provider replaced", providerResponse(p))
}

func (h *Handler) GetRemoteProvider(c *gin.Context) {
	s := h.remoteTileUseCase.Source()
	if s == nil {
		h.RespondWithJSON(c, http.StatusNotFound, usecase.ErrRemoteDisabled.Error(), nil)
		return
	}
	h.RespondWithJSON(c, http.StatusOK, "remote provider", remoteProviderResponse(s))
}

func (h *Handler) PutRemoteProvider(c *gin.Context) {
	var req dto.RemoteProviderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "failed to decode request body", nil)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}
	if req.MinimumZ > 0 && req.MaximumZ > 0 && req.MaximumZ < req.MinimumZ {
		h.RespondWithJSON(c, http.StatusBadRequest, "maximum_z must not be below minimum_z", nil)
		return
	}

	s, err := h.remoteTileUseCase.Reconfigure(req.URLTemplate, req.MinimumZ, req.MaximumZ)
	if err != nil {
		if errors.Is(err, usecase.ErrRemoteDisabled) {
			h.RespondWithJSON(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		h.RespondWithJSON(c, http.StatusBadRequest, err.Error(), nil)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "remote provider replaced", remoteProviderResponse(s))
}
