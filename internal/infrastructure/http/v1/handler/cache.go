package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jaennil/guide_helper/backend/imagery/internal/infrastructure/http/v1/dto"
	"github.com/jaennil/guide_helper/backend/imagery/internal/usecase"
	"github.com/paulmach/orb"
)

func (h *Handler) CacheStats(c *gin.Context) {
	stats, err := h.layerUseCase.Stats(c.Request.Context())
	if err != nil {
		log(c).Error("failed to read cache stats", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "cache stats", stats)
}

func (h *Handler) PurgeExpired(c *gin.Context) {
	n, err := h.layerUseCase.PurgeExpired(c.Request.Context())
	if err != nil {
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "expired tiles purged", gin.H{"removed": n})
}

func (h *Handler) Prefetch(c *gin.Context) {
	var req dto.PrefetchRequest
	if !h.bind(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var (
		result usecase.PrefetchResult
		err    error
	)
	if req.Bound == nil {
		result, err = h.prefetchUseCase.PrefetchCurrent(ctx, nil)
	} else {
		b := req.Bound
		if b.West >= b.East || b.South >= b.North {
			h.RespondWithJSON(c, http.StatusUnprocessableEntity, "bound is empty", nil)
			return
		}
		vp := usecase.ViewportForBound(orb.Bound{
			Min: orb.Point{b.West, b.South},
			Max: orb.Point{b.East, b.North},
		}, req.Zoom)
		result, err = h.prefetchUseCase.Prefetch(ctx, vp, nil)
	}
	if err != nil {
		if errors.Is(err, usecase.ErrNoViewport) {
			h.RespondWithJSON(c, http.StatusConflict, err.Error(), nil)
			return
		}
		log(c).Error("prefetch failed", "error", err)
		h.RespondWithInternalServerError(c)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "prefetch finished", result)
}
