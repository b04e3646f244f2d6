// Package caja holds the cash-drawer domain shared by the server and the till:
// movement kinds, tenders, validation, the aggregation engine and the
// reconciliation calculator. Everything here is pure: no I/O, no clocks
// except where a time is passed in.
package caja

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TipoMovimiento is the kind of a ledger entry. Wire values are stable.
type TipoMovimiento string

const (
	MovimientoApertura    TipoMovimiento = "opening"
	MovimientoVenta       TipoMovimiento = "sale"
	MovimientoDeposito    TipoMovimiento = "deposit"
	MovimientoRetiro      TipoMovimiento = "withdrawal"
	MovimientoGasto       TipoMovimiento = "expense"
	MovimientoCancelacion TipoMovimiento = "cancellation"
	MovimientoCierre      TipoMovimiento = "closing"
)

// Valido reports whether t belongs to the known kind set.
func (t TipoMovimiento) Valido() bool {
	switch t {
	case MovimientoApertura, MovimientoVenta, MovimientoDeposito, MovimientoRetiro,
		MovimientoGasto, MovimientoCancelacion, MovimientoCierre:
		return true
	}
	return false
}

// Sintetico reports whether t is written only by the lifecycle manager.
func (t TipoMovimiento) Sintetico() bool {
	return t == MovimientoApertura || t == MovimientoCierre
}

// Egreso reports whether t takes cash out of the drawer.
func (t TipoMovimiento) Egreso() bool {
	return t == MovimientoRetiro || t == MovimientoGasto || t == MovimientoCancelacion
}

// MetodoPago is the tender settling a movement.
type MetodoPago string

const (
	MetodoEfectivo        MetodoPago = "efectivo"
	MetodoTarjetaCredito  MetodoPago = "tarjeta_credito"
	MetodoTransferencia   MetodoPago = "transferencia"
	MetodoCuentaCorriente MetodoPago = "cuenta_corriente"
	MetodoMultiple        MetodoPago = "multiple"
)

// Valido reports whether m is a known payment method (multiple included).
func (m MetodoPago) Valido() bool {
	switch m {
	case MetodoEfectivo, MetodoTarjetaCredito, MetodoTransferencia, MetodoCuentaCorriente, MetodoMultiple:
		return true
	}
	return false
}

// Metodo returns a pointer to m, for optional fields.
func Metodo(m MetodoPago) *MetodoPago { return &m }

// EstadoSesion: "abierta" | "cerrada"
type EstadoSesion string

const (
	SesionAbierta EstadoSesion = "abierta"
	SesionCerrada EstadoSesion = "cerrada"
)

// Tender is one leg of a split payment.
type Tender struct {
	Metodo MetodoPago      `json:"metodo" yaml:"metodo"`
	Monto  decimal.Decimal `json:"monto"  yaml:"monto"`
}

// Sesion is the till session as seen by both sides of the wire.
type Sesion struct {
	ID           uuid.UUID        `json:"id"             yaml:"id"`
	PuntoDeVenta int              `json:"punto_de_venta" yaml:"punto_de_venta"`
	Estado       EstadoSesion     `json:"estado"         yaml:"estado"`
	MontoInicial decimal.Decimal  `json:"monto_inicial"  yaml:"monto_inicial"`
	AbiertaPor   uuid.UUID        `json:"abierta_por"    yaml:"abierta_por"`
	OpenedAt     time.Time        `json:"opened_at"      yaml:"opened_at"`
	MontoCierre  *decimal.Decimal `json:"monto_cierre"   yaml:"monto_cierre,omitempty"`
	CerradaPor   *uuid.UUID       `json:"cerrada_por"    yaml:"cerrada_por,omitempty"`
	ClosedAt     *time.Time       `json:"closed_at"      yaml:"closed_at,omitempty"`
	Diferencia   *decimal.Decimal `json:"diferencia"     yaml:"diferencia,omitempty"`
	Notas        *string          `json:"notas"          yaml:"notas,omitempty"`
	NotasCierre  *string          `json:"notas_cierre"   yaml:"notas_cierre,omitempty"`
}

// Abierta reports whether the session still accepts movements.
func (s Sesion) Abierta() bool { return s.Estado == SesionAbierta }

// Movimiento is an immutable ledger entry. Corrections are new entries.
type Movimiento struct {
	ID                     uuid.UUID       `json:"id"                        yaml:"id"`
	SesionID               uuid.UUID       `json:"sesion_id"                 yaml:"sesion_id"`
	Orden                  int             `json:"orden"                     yaml:"orden"`
	Tipo                   TipoMovimiento  `json:"tipo"                      yaml:"tipo"`
	MetodoPago             *MetodoPago     `json:"metodo_pago"               yaml:"metodo_pago,omitempty"`
	Monto                  decimal.Decimal `json:"monto"                     yaml:"monto"`
	Descripcion            string          `json:"descripcion"               yaml:"descripcion"`
	Referencia             *string         `json:"referencia"                yaml:"referencia,omitempty"`
	EsCobroCuentaCorriente bool            `json:"es_cobro_cuenta_corriente" yaml:"es_cobro_cuenta_corriente"`
	Pagos                  []Tender        `json:"pagos,omitempty"           yaml:"pagos,omitempty"`
	UsuarioID              uuid.UUID       `json:"usuario_id"                yaml:"usuario_id"`
	CreatedAt              time.Time       `json:"created_at"                yaml:"created_at"`
}

// Tramos decomposes the movement into per-method legs. A multiple-tender
// movement yields one leg per tender; anything else yields a single leg
// (method empty when the movement has none).
func (m Movimiento) Tramos() []Tender {
	if m.MetodoPago != nil && *m.MetodoPago == MetodoMultiple {
		out := make([]Tender, 0, len(m.Pagos))
		for _, p := range m.Pagos {
			out = append(out, Tender{Metodo: p.Metodo, Monto: p.Monto.Abs()})
		}
		return out
	}
	var metodo MetodoPago
	if m.MetodoPago != nil {
		metodo = *m.MetodoPago
	}
	return []Tender{{Metodo: metodo, Monto: m.Monto.Abs()}}
}

// NuevoMovimiento is what callers hand to the ledger; the ledger stamps
// session, user, order and time.
type NuevoMovimiento struct {
	Tipo                   TipoMovimiento
	Monto                  decimal.Decimal
	Descripcion            string
	MetodoPago             *MetodoPago
	Referencia             *string
	EsCobroCuentaCorriente bool
	Pagos                  []Tender
}

// NormalizarMonto applies the ledger sign convention: outflows are stored
// negative, everything else positive.
func NormalizarMonto(tipo TipoMovimiento, monto decimal.Decimal) decimal.Decimal {
	if tipo.Egreso() {
		return monto.Abs().Neg()
	}
	return monto.Abs()
}

// Movimiento builds the ledger entry for n. Amount sign is normalized.
func (n NuevoMovimiento) Movimiento(sesionID, usuarioID uuid.UUID, orden int, at time.Time) Movimiento {
	mov := Movimiento{
		ID:                     uuid.New(),
		SesionID:               sesionID,
		Orden:                  orden,
		Tipo:                   n.Tipo,
		MetodoPago:             n.MetodoPago,
		Monto:                  NormalizarMonto(n.Tipo, n.Monto),
		Descripcion:            n.Descripcion,
		Referencia:             n.Referencia,
		EsCobroCuentaCorriente: n.EsCobroCuentaCorriente,
		UsuarioID:              usuarioID,
		CreatedAt:              at,
	}
	if len(n.Pagos) > 0 {
		mov.Pagos = append([]Tender(nil), n.Pagos...)
	}
	return mov
}
