package model

import (
	"time"

	"blendcaja/internal/caja"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SesionCaja represents the lifecycle of a cash register session.
// Estado: "abierta" | "cerrada". At most one abierta per punto de venta,
// enforced by the partial unique index below.
type SesionCaja struct {
	ID           uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PuntoDeVenta int             `gorm:"not null;index:idx_sesiones_caja_pdv_abierta,unique,where:estado = 'abierta'"`
	Estado       string          `gorm:"type:varchar(20);not null;default:'abierta'"`
	MontoInicial decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	AbiertaPor   uuid.UUID       `gorm:"type:uuid;not null"`
	OpenedAt     time.Time       `gorm:"not null"`
	// Set on close.
	MontoCierre *decimal.Decimal `gorm:"type:decimal(12,2)"`
	CerradaPor  *uuid.UUID       `gorm:"type:uuid"`
	ClosedAt    *time.Time
	Diferencia  *decimal.Decimal `gorm:"type:decimal(12,2)"`
	Notas       *string
	NotasCierre *string

	Movimientos []MovimientoCaja `gorm:"foreignKey:SesionCajaID"`
}

func (SesionCaja) TableName() string { return "sesiones_caja" }

func (s *SesionCaja) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ToCaja converts the row into the domain session.
func (s *SesionCaja) ToCaja() caja.Sesion {
	return caja.Sesion{
		ID:           s.ID,
		PuntoDeVenta: s.PuntoDeVenta,
		Estado:       caja.EstadoSesion(s.Estado),
		MontoInicial: s.MontoInicial,
		AbiertaPor:   s.AbiertaPor,
		OpenedAt:     s.OpenedAt,
		MontoCierre:  s.MontoCierre,
		CerradaPor:   s.CerradaPor,
		ClosedAt:     s.ClosedAt,
		Diferencia:   s.Diferencia,
		Notas:        s.Notas,
		NotasCierre:  s.NotasCierre,
	}
}

// MovimientoCaja is an immutable event in the cash register ledger.
// Movements are NEVER modified or deleted: corrections are new entries.
type MovimientoCaja struct {
	ID                     uuid.UUID       `gorm:"type:uuid;primaryKey"`
	SesionCajaID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_movimientos_caja_orden"`
	Orden                  int             `gorm:"not null;uniqueIndex:idx_movimientos_caja_orden"`
	Tipo                   string          `gorm:"type:varchar(20);not null"`
	MetodoPago             *string         `gorm:"type:varchar(20)"`
	Monto                  decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Descripcion            string          `gorm:"not null"`
	Referencia             *string         `gorm:"type:varchar(100);index"`
	EsCobroCuentaCorriente bool            `gorm:"not null;default:false"`
	UsuarioID              uuid.UUID       `gorm:"type:uuid;not null"`
	CreatedAt              time.Time

	Pagos []PagoMovimiento `gorm:"foreignKey:MovimientoCajaID"`
}

func (MovimientoCaja) TableName() string { return "movimientos_caja" }

// NewMovimientoCaja maps a domain movement onto its row (tenders included).
func NewMovimientoCaja(m caja.Movimiento) *MovimientoCaja {
	row := &MovimientoCaja{
		ID:                     m.ID,
		SesionCajaID:           m.SesionID,
		Orden:                  m.Orden,
		Tipo:                   string(m.Tipo),
		Monto:                  m.Monto,
		Descripcion:            m.Descripcion,
		Referencia:             m.Referencia,
		EsCobroCuentaCorriente: m.EsCobroCuentaCorriente,
		UsuarioID:              m.UsuarioID,
		CreatedAt:              m.CreatedAt,
	}
	if m.MetodoPago != nil {
		metodo := string(*m.MetodoPago)
		row.MetodoPago = &metodo
	}
	for i, p := range m.Pagos {
		row.Pagos = append(row.Pagos, PagoMovimiento{
			MovimientoCajaID: m.ID,
			Posicion:         i + 1,
			Metodo:           string(p.Metodo),
			Monto:            p.Monto,
		})
	}
	return row
}

func (m *MovimientoCaja) BeforeCreate(*gorm.DB) error {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	return nil
}

// ToCaja converts the row into the domain movement. Pagos must be preloaded.
func (m *MovimientoCaja) ToCaja() caja.Movimiento {
	out := caja.Movimiento{
		ID:                     m.ID,
		SesionID:               m.SesionCajaID,
		Orden:                  m.Orden,
		Tipo:                   caja.TipoMovimiento(m.Tipo),
		Monto:                  m.Monto,
		Descripcion:            m.Descripcion,
		Referencia:             m.Referencia,
		EsCobroCuentaCorriente: m.EsCobroCuentaCorriente,
		UsuarioID:              m.UsuarioID,
		CreatedAt:              m.CreatedAt,
	}
	if m.MetodoPago != nil {
		out.MetodoPago = caja.Metodo(caja.MetodoPago(*m.MetodoPago))
	}
	for _, p := range m.Pagos {
		out.Pagos = append(out.Pagos, caja.Tender{Metodo: caja.MetodoPago(p.Metodo), Monto: p.Monto})
	}
	return out
}

// MovimientosToCaja converts a slice of rows, keeping order.
func MovimientosToCaja(rows []MovimientoCaja) []caja.Movimiento {
	out := make([]caja.Movimiento, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToCaja())
	}
	return out
}

// PagoMovimiento is one tender leg of a split-tender movement.
type PagoMovimiento struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey"`
	MovimientoCajaID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Posicion         int             `gorm:"not null"`
	Metodo           string          `gorm:"type:varchar(20);not null"`
	Monto            decimal.Decimal `gorm:"type:decimal(12,2);not null"`
}

func (PagoMovimiento) TableName() string { return "pagos_movimiento" }

func (p *PagoMovimiento) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
