package model

import (
	"time"

	"blendcaja/internal/caja"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SesionArchivada is the history record written once, at close. Numbers are
// frozen: they are never recomputed from the movements, even if the
// aggregation rules change later.
type SesionArchivada struct {
	SesionCajaID     uuid.UUID       `gorm:"type:uuid;primaryKey"`
	PuntoDeVenta     int             `gorm:"not null;index"`
	AbiertaPor       uuid.UUID       `gorm:"type:uuid;not null"`
	CerradaPor       uuid.UUID       `gorm:"type:uuid;not null"`
	OpenedAt         time.Time       `gorm:"not null"`
	ClosedAt         time.Time       `gorm:"not null;index"`
	MontoInicial     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MontoEsperado    decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	MontoContado     decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Diferencia       decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	EstadoDiferencia string          `gorm:"type:varchar(20);not null"`
	Severidad        string          `gorm:"type:varchar(20);not null"`
	ConteoFisico     bool            `gorm:"not null"`
	Movimientos      int             `gorm:"not null"`
	Notas            *string
	NotasCierre      *string

	Agregados    caja.Agregados     `gorm:"type:jsonb;serializer:json;not null"`
	Resumen      caja.ResumenCierre `gorm:"type:jsonb;serializer:json;not null"`
	Ganancias    caja.Ganancias     `gorm:"type:jsonb;serializer:json;not null"`
	Conciliacion caja.Conciliacion  `gorm:"type:jsonb;serializer:json;not null"`

	CreatedAt time.Time
}

func (SesionArchivada) TableName() string { return "sesiones_archivadas" }

// NewSesionArchivada freezes a closed session together with its final numbers.
func NewSesionArchivada(s caja.Sesion, ag caja.Agregados, resumen caja.ResumenCierre, c caja.Conciliacion, movimientos int) *SesionArchivada {
	a := &SesionArchivada{
		SesionCajaID:     s.ID,
		PuntoDeVenta:     s.PuntoDeVenta,
		AbiertaPor:       s.AbiertaPor,
		OpenedAt:         s.OpenedAt,
		MontoInicial:     s.MontoInicial,
		MontoEsperado:    c.Esperado,
		MontoContado:     c.Contado,
		Diferencia:       c.Diferencia,
		EstadoDiferencia: string(c.Estado),
		Severidad:        string(c.Severidad),
		ConteoFisico:     c.ConteoFisico,
		Movimientos:      movimientos,
		Notas:            s.Notas,
		NotasCierre:      s.NotasCierre,
		Agregados:        ag,
		Resumen:          resumen,
		Ganancias:        caja.CalcularGanancias(ag),
		Conciliacion:     c,
	}
	if s.CerradaPor != nil {
		a.CerradaPor = *s.CerradaPor
	}
	if s.ClosedAt != nil {
		a.ClosedAt = *s.ClosedAt
	}
	return a
}
