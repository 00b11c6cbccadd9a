package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/imagery/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/imagery/internal/tilesource"
	"github.com/jaennil/guide_helper/backend/imagery/internal/usecase"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/config"
)

func (h *Handler) SetViewport(c *gin.Context) {
	var req dto.ViewportRequest
	if !h.bind(c, &req) {
		return
	}

	err := h.layerUseCase.SetView(c.Request.Context(), usecase.View{
		Lon:      req.Lon,
		Lat:      req.Lat,
		Zoom:     req.Zoom,
		Rotation: req.Rotation,
		Tilt:     req.Tilt,
		Width:    req.Width,
		Height:   req.Height,
	})
	if err != nil {
		log(c).Error("failed to set viewport", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "viewport updated", nil)
}

func (h *Handler) Tiles(c *gin.Context) {
	tiles, err := h.layerUseCase.Tiles(c.Request.Context())
	if err != nil {
		log(c).Error("failed to list tiles", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "live tiles", dto.TilesResponse{Count: len(tiles), Tiles: tiles})
}

func (h *Handler) Status(c *gin.Context) {
	ctx := c.Request.Context()
	dark, err := h.layerUseCase.DarkMode(ctx)
	if err != nil {
		log(c).Error("failed to read layer status", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "layer status", dto.StatusResponse{
		InFlight: h.statusUseCase.InFlight(),
		DarkMode: dark,
		Source:   h.layerUseCase.Source(),
	})
}

func (h *Handler) Purge(c *gin.Context) {
	if err := h.layerUseCase.Purge(c.Request.Context()); err != nil {
		log(c).Error("failed to purge tiles", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "tile cache purged", nil)
}

func (h *Handler) SetDarkMode(c *gin.Context) {
	var req dto.DarkModeRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.layerUseCase.SetDarkMode(c.Request.Context(), *req.Enabled); err != nil {
		log(c).Error("failed to set dark mode", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "dark mode updated", nil)
}

func (h *Handler) SetOffset(c *gin.Context) {
	var req dto.OffsetRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.layerUseCase.SetOffset(c.Request.Context(), req.X, req.Y); err != nil {
		log(c).Error("failed to set offset", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "offset updated", nil)
}

func (h *Handler) SetVisibility(c *gin.Context) {
	var req dto.VisibilityRequest
	if !h.bind(c, &req) {
		return
	}

	if err := h.layerUseCase.SetHidden(c.Request.Context(), *req.Hidden); err != nil {
		log(c).Error("failed to set visibility", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "visibility updated", nil)
}

func (h *Handler) Source(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusOK, "current source", h.layerUseCase.Source())
}

func (h *Handler) SetSource(c *gin.Context) {
	var req dto.SourceRequest
	if !h.bind(c, &req) {
		return
	}

	info, err := h.layerUseCase.SetSource(c.Request.Context(), config.Source{
		Preset:        req.Preset,
		Name:          req.Name,
		Identifier:    req.Identifier,
		URL:           req.URL,
		MaxZoom:       req.MaxZoom,
		RoundZoomUp:   req.RoundZoomUp,
		APIKey:        req.APIKey,
		WMSProjection: req.WMSProjection,
	})
	if err != nil {
		if errors.Is(err, tilesource.ErrInvalidTemplate) ||
			errors.Is(err, tilesource.ErrUnknownPreset) ||
			errors.Is(err, tilesource.ErrUnsupportedProjection) {
			h.RespondWithJSON(c, http.StatusUnprocessableEntity, err.Error(), nil)
			return
		}
		log(c).Error("failed to switch source", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	log(c).Info("tile source switched", "identifier", info.Identifier)
	h.RespondWithJSON(c, http.StatusOK, "source switched", info)
}

func (h *Handler) Snapshot(c *gin.Context) {
	data, err := h.layerUseCase.Snapshot(c.Request.Context())
	if err != nil {
		if errors.Is(err, usecase.ErrNoViewport) {
			h.RespondWithJSON(c, http.StatusConflict, err.Error(), nil)
			return
		}
		log(c).Error("failed to render snapshot", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	c.Data(http.StatusOK, "image/png", data)
}
