package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

func (h *Handler) Errors(c *gin.Context) {
	h.RespondWithJSON(c, http.StatusOK, "reported errors", h.statusUseCase.Errors())
}

func (h *Handler) DismissError(c *gin.Context) {
	strID := c.Param("id")
	id, err := strconv.Atoi(strID)
	if err != nil {
		h.RespondWithJSON(c, http.StatusBadRequest, "id should be integer", nil)
		return
	}

	if !h.statusUseCase.DismissError(id) {
		h.RespondWithJSON(c, http.StatusNotFound, "error not found", nil)
		return
	}

	h.RespondWithJSON(c, http.StatusOK, "error dismissed", nil)
}

func (h *Handler) ClearErrors(c *gin.Context) {
	h.statusUseCase.ClearErrors()
	h.RespondWithJSON(c, http.StatusOK, "errors cleared", nil)
}
