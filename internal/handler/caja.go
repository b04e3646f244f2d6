package handler

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"blendcaja/internal/apierror"
	"blendcaja/internal/dto"
	"blendcaja/internal/middleware"
	"blendcaja/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type CajaHandler struct {
	svc service.CajaService
	// puntoDeVenta is used when neither the request nor the token names one.
	puntoDeVenta int
}

func NewCajaHandler(svc service.CajaService, puntoDeVenta int) *CajaHandler {
	if puntoDeVenta < 1 {
		puntoDeVenta = 1
	}
	return &CajaHandler{svc: svc, puntoDeVenta: puntoDeVenta}
}

// resolvePDV picks the point of sale for a request: explicit value, then the
// token claim, then the server default. A cajero bound to a till cannot act
// on another one. Writes the error response and returns false on rejection.
func (h *CajaHandler) resolvePDV(c *gin.Context, pedido int) (int, bool) {
	claims := middleware.GetClaims(c)
	var propio *int
	if claims != nil {
		propio = claims.PuntoDeVenta
	}

	switch {
	case pedido > 0:
		if claims != nil && claims.Rol == middleware.RolCajero && propio != nil && *propio != pedido {
			c.JSON(http.StatusForbidden, apierror.New("Punto de venta no asignado al usuario"))
			return 0, false
		}
		return pedido, true
	case propio != nil && *propio > 0:
		return *propio, true
	default:
		return h.puntoDeVenta, true
	}
}

func usuario(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.UsuarioID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apierror.New("Token sin usuario valido"))
	}
	return id, ok
}

// Estado godoc
// @Summary Estado de la caja del punto de venta
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param punto_de_venta query int false "Punto de venta"
// @Success 200 {object} dto.EstadoCajaResponse
// @Router /v1/caja/estado [get]
func (h *CajaHandler) Estado(c *gin.Context) {
	pedido, _ := strconv.Atoi(c.Query("punto_de_venta"))
	pdv, ok := h.resolvePDV(c, pedido)
	if !ok {
		return
	}
	resp, err := h.svc.Estado(c.Request.Context(), pdv)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK(resp))
}

// Abrir godoc
// @Summary Abre una nueva sesion de caja
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.AbrirCajaRequest true "Datos de apertura"
// @Success 201 {object} dto.AperturaResponse
// @Failure 409 {object} apierror.Envelope
// @Failure 422 {object} apierror.Envelope
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	var req dto.AbrirCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	usuarioID, ok := usuario(c)
	if !ok {
		return
	}
	if req.PuntoDeVenta, ok = h.resolvePDV(c, req.PuntoDeVenta); !ok {
		return
	}

	resp, err := h.svc.Abrir(c.Request.Context(), usuarioID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, apierror.OK(resp))
}

// RegistrarMovimiento godoc
// @Summary Registra un movimiento en la sesion abierta
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.MovimientoRequest true "Movimiento"
// @Success 201 {object} dto.MovimientoResponse
// @Failure 409 {object} apierror.Envelope
// @Failure 422 {object} apierror.Envelope
// @Router /v1/caja/movimientos [post]
func (h *CajaHandler) RegistrarMovimiento(c *gin.Context) {
	var req dto.MovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}
	usuarioID, ok := usuario(c)
	if !ok {
		return
	}
	if req.PuntoDeVenta, ok = h.resolvePDV(c, req.PuntoDeVenta); !ok {
		return
	}

	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), usuarioID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, apierror.OK(resp))
}

// Cerrar godoc
// @Summary Concilia y cierra la sesion abierta
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.CerrarCajaRequest true "Conteo fisico"
// @Success 200 {object} dto.CierreResponse
// @Failure 409 {object} apierror.Envelope
// @Failure 422 {object} apierror.Envelope
// @Router /v1/caja/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	var req dto.CerrarCajaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	usuarioID, ok := usuario(c)
	if !ok {
		return
	}
	if req.PuntoDeVenta, ok = h.resolvePDV(c, req.PuntoDeVenta); !ok {
		return
	}

	resp, err := h.svc.Cerrar(c.Request.Context(), usuarioID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK(resp))
}

// ObtenerReporte godoc
// @Summary Obtiene el reporte de una sesion de caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Success 200 {object} dto.ReporteResponse
// @Failure 404 {object} apierror.Envelope
// @Router /v1/caja/{id}/reporte [get]
func (h *CajaHandler) ObtenerReporte(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID inválido"))
		return
	}
	resp, err := h.svc.ObtenerReporte(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, ok := h.resolvePDV(c, resp.Sesion.PuntoDeVenta); !ok {
		return
	}
	c.JSON(http.StatusOK, apierror.OK(resp))
}

// Historial godoc
// @Summary Lista las sesiones archivadas
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param desde query string false "YYYY-MM-DD"
// @Param hasta query string false "YYYY-MM-DD (inclusive)"
// @Param punto_de_venta query int false "Punto de venta"
// @Param page query int false "Pagina"
// @Param limit query int false "Tamaño de pagina (max 100)"
// @Success 200 {object} dto.HistorialListResponse
// @Router /v1/caja/historial [get]
func (h *CajaHandler) Historial(c *gin.Context) {
	filter, ok := historialFilter(c)
	if !ok {
		return
	}
	resp, err := h.svc.Historial(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, apierror.OK(resp))
}

// ExportarHistorial godoc
// @Summary Exporta el historial filtrado como XLSX
// @Tags caja
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Security BearerAuth
// @Param desde query string false "YYYY-MM-DD"
// @Param hasta query string false "YYYY-MM-DD (inclusive)"
// @Param punto_de_venta query int false "Punto de venta"
// @Success 200 {file} file
// @Router /v1/caja/historial/export [get]
func (h *CajaHandler) ExportarHistorial(c *gin.Context) {
	filter, ok := historialFilter(c)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := h.svc.ExportarHistorial(c.Request.Context(), filter, &buf); err != nil {
		respondError(c, err)
		return
	}
	nombre := fmt.Sprintf("historial_caja_%s.xlsx", time.Now().Format("20060102_1504"))
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, nombre))
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

// DetalleHistorial godoc
// @Summary Detalle de una sesion archivada
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Success 200 {object} dto.HistorialDetalleResponse
// @Failure 404 {object} apierror.Envelope
// @Router /v1/caja/historial/{id} [get]
func (h *CajaHandler) DetalleHistorial(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID inválido"))
		return
	}
	resp, err := h.svc.DetalleHistorial(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	if _, ok := h.resolvePDV(c, resp.PuntoDeVenta); !ok {
		return
	}
	c.JSON(http.StatusOK, apierror.OK(resp))
}

// historialFilter parses the history query string. Dates are YYYY-MM-DD in
// UTC; hasta covers the whole day.
func historialFilter(c *gin.Context) (dto.HistorialFilter, bool) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	pdv, _ := strconv.Atoi(c.Query("punto_de_venta"))

	filter := dto.HistorialFilter{PuntoDeVenta: pdv, Page: page, Limit: limit}
	for _, q := range []struct {
		name string
		dst  **time.Time
	}{{"desde", &filter.Desde}, {"hasta", &filter.Hasta}} {
		raw := c.Query(q.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{q.name: "datetime=2006-01-02"}))
			return filter, false
		}
		*q.dst = &t
	}
	if filter.Desde != nil && filter.Hasta != nil && filter.Hasta.Before(*filter.Desde) {
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(map[string]string{"hasta": "gtefield=desde"}))
		return filter, false
	}
	return filter, true
}
