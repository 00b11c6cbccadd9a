package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jaennil/guide_helper/backend/imagery/internal/usecase"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
)

const (
	internalServerErrorText = "the server encountered an error and could not process your request"
	invalidBodyText         = "failed to decode request body"
)

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

type Handler struct {
	validate        *validator.Validate
	layerUseCase    *usecase.LayerUseCase
	statusUseCase   *usecase.StatusUseCase
	prefetchUseCase *usecase.PrefetchUseCase
}

func NewHandler(
	v *validator.Validate,
	layer *usecase.LayerUseCase,
	status *usecase.StatusUseCase,
	prefetch *usecase.PrefetchUseCase,
) *Handler {
	return &Handler{
		validate:        v,
		layerUseCase:    layer,
		statusUseCase:   status,
		prefetchUseCase: prefetch,
	}
}

func (h *Handler) RespondWithInternalServerError(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusInternalServerError, internalServerErrorText, nil)
}

func (h *Handler) RespondWithJSON(c *gin.Context, code int, message string, data any) {
	success := code < 400

	r := response{
		Success: success,
		Message: message,
		Data:    data,
	}

	c.JSON(code, r)
}

// bind decodes and validates the JSON body into req. It responds itself
// and returns false on failure.
func (h *Handler) bind(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		log(c).Warn("invalid request body", "path", c.FullPath(), "error", err)
		h.RespondWithJSON(c, http.StatusBadRequest, invalidBodyText, nil)
		return false
	}
	if err := h.validate.Struct(req); err != nil {
		log(c).Warn("request validation failed", "path", c.FullPath(), "error", err)
		h.RespondWithJSON(c, http.StatusUnprocessableEntity, err.Error(), nil)
		return false
	}
	return true
}

func log(c *gin.Context) logger.Logger {
	if l, ok := c.Get("logger"); ok {
		if l, ok := l.(logger.Logger); ok {
			return l
		}
	}
	return logger.FromContext(c.Request.Context())
}
