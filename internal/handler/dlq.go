package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"blendcaja/internal/apierror"
	"blendcaja/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// ColasMuertas is what the admin endpoints need from the dead-letter lists.
type ColasMuertas interface {
	Resumen(ctx context.Context) (map[string]int64, error)
	Listar(ctx context.Context, cola string, limit int) ([]worker.DLQEntry, error)
	Reencolar(ctx context.Context, cola string, limite int) (int, error)
}

type DLQHandler struct {
	dlq ColasMuertas
}

func NewDLQHandler(dlq ColasMuertas) *DLQHandler {
	return &DLQHandler{dlq: dlq}
}

// Resumen godoc
// @Summary Trabajos fallidos por cola
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]int64
// @Router /v1/admin/dlq [get]
func (h *DLQHandler) Resumen(c *gin.Context) {
	res, err := h.dlq.Resumen(c.Request.Context())
	if err != nil {
		h.fallo(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK(res))
}

// Listar godoc
// @Summary Trabajos fallidos de una cola
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param cola path string true "cierre | email"
// @Param limit query int false "Máximo de entradas (default 20)"
// @Success 200 {array} worker.DLQEntry
// @Router /v1/admin/dlq/{cola} [get]
func (h *DLQHandler) Listar(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.dlq.Listar(c.Request.Context(), c.Param("cola"), limit)
	if err != nil {
		h.fallo(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK(entries))
}

// Reencolar godoc
// @Summary Reencola trabajos fallidos
// @Tags admin
// @Produce json
// @Security BearerAuth
// @Param cola path string true "cierre | email"
// @Param max query int false "Cantidad a reencolar (default 10)"
// @Success 200 {object} map[string]int
// @Router /v1/admin/dlq/{cola}/reencolar [post]
func (h *DLQHandler) Reencolar(c *gin.Context) {
	limite, err := strconv.Atoi(c.DefaultQuery("max", "10"))
	if err != nil || limite < 1 || limite > 1000 {
		c.JSON(http.StatusBadRequest, apierror.WithCode("parametro_invalido", "max debe estar entre 1 y 1000"))
		return
	}
	n, err := h.dlq.Reencolar(c.Request.Context(), c.Param("cola"), limite)
	if err != nil {
		h.fallo(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK(gin.H{"reencolados": n}))
}

func (h *DLQHandler) fallo(c *gin.Context, err error) {
	if errors.Is(err, worker.ErrColaDesconocida) {
		c.JSON(http.StatusNotFound, apierror.WithCode("cola_desconocida", "Cola desconocida: "+c.Param("cola")))
		return
	}
	log.Error().Err(err).Str("path", c.FullPath()).Msg("dlq: redis error")
	c.JSON(http.StatusServiceUnavailable, apierror.New("Cola de trabajos no disponible"))
}
