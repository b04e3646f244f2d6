package dto

import (
	"time"

	"blendcaja/internal/caja"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ─── Request DTOs ────────────────────────────────────────────────────────────

// AbrirCajaRequest: punto_de_venta 0 means "the caller's own" (JWT claim or
// server default).
type AbrirCajaRequest struct {
	PuntoDeVenta int             `json:"punto_de_venta" validate:"omitempty,min=1"`
	MontoInicial decimal.Decimal `json:"monto_inicial"  validate:"gt=0"`
	Notas        *string         `json:"notas"          validate:"omitempty,max=500"`
}

type PagoRequest struct {
	Metodo string          `json:"metodo" validate:"required"`
	Monto  decimal.Decimal `json:"monto"  validate:"gt=0"`
}

// MovimientoRequest appends one movement to the open session. Kind and
// tender rules are checked by the domain so that errors carry a stable code.
type MovimientoRequest struct {
	PuntoDeVenta           int             `json:"punto_de_venta"            validate:"omitempty,min=1"`
	Tipo                   string          `json:"tipo"                      validate:"required"`
	Monto                  decimal.Decimal `json:"monto"`
	Descripcion            string          `json:"descripcion"               validate:"max=255"`
	MetodoPago             *string         `json:"metodo_pago"`
	Referencia             *string         `json:"referencia"                validate:"omitempty,max=100"`
	EsCobroCuentaCorriente bool            `json:"es_cobro_cuenta_corriente"`
	Pagos                  []PagoRequest   `json:"pagos"                     validate:"omitempty,dive"`
}

// ToNuevo converts the request into the domain input.
func (r MovimientoRequest) ToNuevo() caja.NuevoMovimiento {
	n := caja.NuevoMovimiento{
		Tipo:                   caja.TipoMovimiento(r.Tipo),
		Monto:                  r.Monto,
		Descripcion:            r.Descripcion,
		Referencia:             r.Referencia,
		EsCobroCuentaCorriente: r.EsCobroCuentaCorriente,
	}
	if r.MetodoPago != nil && *r.MetodoPago != "" {
		n.MetodoPago = caja.Metodo(caja.MetodoPago(*r.MetodoPago))
	}
	if r.Referencia != nil && *r.Referencia == "" {
		n.Referencia = nil
	}
	for _, p := range r.Pagos {
		n.Pagos = append(n.Pagos, caja.Tender{Metodo: caja.MetodoPago(p.Metodo), Monto: p.Monto})
	}
	return n
}

// NewMovimientoRequest is the inverse of ToNuevo, used by the till client.
func NewMovimientoRequest(puntoDeVenta int, n caja.NuevoMovimiento) MovimientoRequest {
	r := MovimientoRequest{
		PuntoDeVenta:           puntoDeVenta,
		Tipo:                   string(n.Tipo),
		Monto:                  n.Monto,
		Descripcion:            n.Descripcion,
		Referencia:             n.Referencia,
		EsCobroCuentaCorriente: n.EsCobroCuentaCorriente,
	}
	if n.MetodoPago != nil {
		m := string(*n.MetodoPago)
		r.MetodoPago = &m
	}
	for _, p := range n.Pagos {
		r.Pagos = append(r.Pagos, PagoRequest{Metodo: string(p.Metodo), Monto: p.Monto})
	}
	return r
}

// CerrarCajaRequest: monto_contado omitted means "no physical count".
type CerrarCajaRequest struct {
	PuntoDeVenta int              `json:"punto_de_venta" validate:"omitempty,min=1"`
	MontoContado *decimal.Decimal `json:"monto_contado"`
	Notas        *string          `json:"notas"          validate:"omitempty,max=500"`
}

// HistorialFilter is built from the query string of GET /v1/caja/historial.
// Limit 0 disables pagination.
type HistorialFilter struct {
	Desde        *time.Time
	Hasta        *time.Time
	PuntoDeVenta int
	Page         int
	Limit        int
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type EstadoCajaResponse struct {
	PuntoDeVenta              int                          `json:"punto_de_venta"`
	Sesion                    *caja.Sesion                 `json:"sesion"`
	Movimientos               []caja.Movimiento            `json:"movimientos"`
	Agregados                 *caja.Agregados              `json:"agregados"`
	CuentaCorriente           *caja.DetalleCuentaCorriente `json:"cuenta_corriente"`
	CierreAutomaticoPendiente bool                         `json:"cierre_automatico_pendiente"`
	Advertencias              []caja.Advertencia           `json:"advertencias"`
}

type AperturaResponse struct {
	Sesion       caja.Sesion        `json:"sesion"`
	Movimiento   caja.Movimiento    `json:"movimiento"`
	Advertencias []caja.Advertencia `json:"advertencias"`
}

type MovimientoResponse struct {
	Movimiento caja.Movimiento `json:"movimiento"`
	Agregados  caja.Agregados  `json:"agregados"`
}

type CierreResponse struct {
	Sesion          caja.Sesion                 `json:"sesion"`
	Agregados       caja.Agregados              `json:"agregados"`
	Resumen         caja.ResumenCierre          `json:"resumen"`
	Conciliacion    caja.Conciliacion           `json:"conciliacion"`
	CuentaCorriente caja.DetalleCuentaCorriente `json:"cuenta_corriente"`
	Advertencias    []caja.Advertencia          `json:"advertencias"`
}

// ReporteResponse: for an open session Resumen is a preview and Conciliacion
// is null; for a closed one every number comes from the archive.
type ReporteResponse struct {
	Sesion          caja.Sesion                 `json:"sesion"`
	Movimientos     []caja.Movimiento           `json:"movimientos"`
	Agregados       caja.Agregados              `json:"agregados"`
	Resumen         caja.ResumenCierre          `json:"resumen"`
	CuentaCorriente caja.DetalleCuentaCorriente `json:"cuenta_corriente"`
	Conciliacion    *caja.Conciliacion          `json:"conciliacion"`
	Ganancias       *caja.Ganancias             `json:"ganancias"`
}

// HistorialItem is one row of the archived-session list.
type HistorialItem struct {
	SesionCajaID      uuid.UUID             `json:"sesion_caja_id"      yaml:"sesion_caja_id"`
	PuntoDeVenta      int                   `json:"punto_de_venta"      yaml:"punto_de_venta"`
	AbiertaPor        uuid.UUID             `json:"abierta_por"         yaml:"abierta_por"`
	CerradaPor        uuid.UUID             `json:"cerrada_por"         yaml:"cerrada_por"`
	OpenedAt          time.Time             `json:"opened_at"           yaml:"opened_at"`
	ClosedAt          time.Time             `json:"closed_at"           yaml:"closed_at"`
	MontoInicial      decimal.Decimal       `json:"monto_inicial"       yaml:"monto_inicial"`
	MontoEsperado     decimal.Decimal       `json:"monto_esperado"      yaml:"monto_esperado"`
	MontoContado      decimal.Decimal       `json:"monto_contado"       yaml:"monto_contado"`
	Diferencia        decimal.Decimal       `json:"diferencia"          yaml:"diferencia"`
	EstadoDiferencia  caja.EstadoDiferencia `json:"estado_diferencia"   yaml:"estado_diferencia"`
	Severidad         caja.Severidad        `json:"severidad"           yaml:"severidad"`
	MontoTotalGeneral decimal.Decimal       `json:"monto_total_general" yaml:"monto_total_general"`
	Movimientos       int                   `json:"movimientos"         yaml:"movimientos"`
}

type HistorialListResponse struct {
	Data      []HistorialItem `json:"data"      yaml:"data"`
	Total     int64           `json:"total"     yaml:"total"`
	Page      int             `json:"page"      yaml:"page"`
	Limit     int             `json:"limit"     yaml:"limit"`
	Ganancias caja.Ganancias  `json:"ganancias" yaml:"ganancias"`
}

type HistorialDetalleResponse struct {
	HistorialItem `yaml:",inline"`
	Notas         *string            `json:"notas"        yaml:"notas,omitempty"`
	NotasCierre   *string            `json:"notas_cierre" yaml:"notas_cierre,omitempty"`
	Agregados     caja.Agregados     `json:"agregados"    yaml:"agregados"`
	Resumen       caja.ResumenCierre `json:"resumen"      yaml:"resumen"`
	Conciliacion  caja.Conciliacion  `json:"conciliacion" yaml:"conciliacion"`
	Ganancias     caja.Ganancias     `json:"ganancias"    yaml:"ganancias"`
	Detalle       []caja.Movimiento  `json:"detalle"      yaml:"detalle"`
}
