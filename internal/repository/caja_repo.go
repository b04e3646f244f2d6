package repository

import (
	"context"
	"errors"
	"fmt"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"
	"blendcaja/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CajaRepository persists sessions, their append-only movement log and the
// archive. There is deliberately no Update/Delete for movements.
type CajaRepository interface {
	AbrirSesion(ctx context.Context, s *model.SesionCaja, apertura *model.MovimientoCaja) error
	FindSesionAbiertaPorPDV(ctx context.Context, puntoDeVenta int) (*model.SesionCaja, error)
	FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error)
	CreateMovimiento(ctx context.Context, m *model.MovimientoCaja) error
	ListMovimientos(ctx context.Context, sesionCajaID uuid.UUID) ([]model.MovimientoCaja, error)
	ExisteCobroConReferencia(ctx context.Context, referencia string) (bool, error)
	CerrarSesion(ctx context.Context, s *model.SesionCaja, cierre *model.MovimientoCaja, archivo *model.SesionArchivada) error
	ListHistorial(ctx context.Context, filter dto.HistorialFilter) ([]model.SesionArchivada, int64, error)
	FindArchivo(ctx context.Context, sesionCajaID uuid.UUID) (*model.SesionArchivada, error)
}

type cajaRepo struct{ db *gorm.DB }

func NewCajaRepository(db *gorm.DB) CajaRepository { return &cajaRepo{db: db} }

// AbrirSesion creates the session row and its opening movement in one transaction.
// A concurrent open on the same punto de venta loses on the partial unique index.
func (r *cajaRepo) AbrirSesion(ctx context.Context, s *model.SesionCaja, apertura *model.MovimientoCaja) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(s).Error; err != nil {
			return err
		}
		apertura.SesionCajaID = s.ID
		return tx.Create(apertura).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return caja.Conflicto(caja.ErrSesionYaAbierta)
	}
	if err != nil {
		return fmt.Errorf("abrir sesión: %w", err)
	}
	return nil
}

// FindSesionAbiertaPorPDV returns (nil, nil) when no session is open.
func (r *cajaRepo) FindSesionAbiertaPorPDV(ctx context.Context, puntoDeVenta int) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).
		Where("punto_de_venta = ? AND estado = ?", puntoDeVenta, string(caja.SesionAbierta)).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("buscar sesión abierta: %w", err)
	}
	return &s, nil
}

func (r *cajaRepo) FindSesionByID(ctx context.Context, id uuid.UUID) (*model.SesionCaja, error) {
	var s model.SesionCaja
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, caja.ErrSesionNoEncontrada
	}
	if err != nil {
		return nil, fmt.Errorf("buscar sesión: %w", err)
	}
	return &s, nil
}

// CreateMovimiento inserts the movement and its tenders (GORM saves the
// Pagos association in the same transaction).
func (r *cajaRepo) CreateMovimiento(ctx context.Context, m *model.MovimientoCaja) error {
	err := r.db.WithContext(ctx).Create(m).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		// Another writer took the same position in the log.
		return caja.Conflicto(caja.ErrOperacionEnCurso)
	}
	if err != nil {
		return fmt.Errorf("registrar movimiento: %w", err)
	}
	return nil
}

func (r *cajaRepo) ListMovimientos(ctx context.Context, sesionCajaID uuid.UUID) ([]model.MovimientoCaja, error) {
	var movs []model.MovimientoCaja
	err := r.db.WithContext(ctx).
		Preload("Pagos", func(db *gorm.DB) *gorm.DB { return db.Order("posicion ASC") }).
		Where("sesion_caja_id = ?", sesionCajaID).
		Order("orden ASC").
		Find(&movs).Error
	if err != nil {
		return nil, fmt.Errorf("listar movimientos: %w", err)
	}
	return movs, nil
}

func (r *cajaRepo) ExisteCobroConReferencia(ctx context.Context, referencia string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&model.MovimientoCaja{}).
		Where("referencia = ? AND es_cobro_cuenta_corriente = ?", referencia, true).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("buscar referencia: %w", err)
	}
	return n > 0, nil
}

// CerrarSesion writes the closing movement, flips the session to cerrada and
// stores the archive record, all or nothing. The update is conditional on the
// session still being abierta so a concurrent close cannot archive twice.
func (r *cajaRepo) CerrarSesion(ctx context.Context, s *model.SesionCaja, cierre *model.MovimientoCaja, archivo *model.SesionArchivada) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(cierre).Error; err != nil {
			return fmt.Errorf("movimiento de cierre: %w", err)
		}
		res := tx.Model(&model.SesionCaja{}).
			Where("id = ? AND estado = ?", s.ID, string(caja.SesionAbierta)).
			Updates(map[string]interface{}{
				"estado":       s.Estado,
				"monto_cierre": s.MontoCierre,
				"cerrada_por":  s.CerradaPor,
				"closed_at":    s.ClosedAt,
				"diferencia":   s.Diferencia,
				"notas_cierre": s.NotasCierre,
			})
		if res.Error != nil {
			return fmt.Errorf("cerrar sesión: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return caja.Conflicto(caja.ErrSesionNoAbierta)
		}
		if err := tx.Create(archivo).Error; err != nil {
			return fmt.Errorf("archivar sesión: %w", err)
		}
		return nil
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return caja.Conflicto(caja.ErrSesionNoAbierta)
	}
	return err
}

// ListHistorial returns archived sessions, newest first. A zero Limit returns
// every row matching the filter (used for totals and exports).
func (r *cajaRepo) ListHistorial(ctx context.Context, filter dto.HistorialFilter) ([]model.SesionArchivada, int64, error) {
	var rows []model.SesionArchivada
	var total int64

	q := r.db.WithContext(ctx).Model(&model.SesionArchivada{})
	if filter.PuntoDeVenta > 0 {
		q = q.Where("punto_de_venta = ?", filter.PuntoDeVenta)
	}
	if filter.Desde != nil {
		q = q.Where("closed_at >= ?", *filter.Desde)
	}
	if filter.Hasta != nil {
		// Hasta is inclusive of the whole day.
		q = q.Where("closed_at < ?", filter.Hasta.AddDate(0, 0, 1))
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("contar historial: %w", err)
	}

	q = q.Order("closed_at DESC")
	if filter.Limit > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		q = q.Offset((page - 1) * filter.Limit).Limit(filter.Limit)
	}
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("listar historial: %w", err)
	}
	return rows, total, nil
}

func (r *cajaRepo) FindArchivo(ctx context.Context, sesionCajaID uuid.UUID) (*model.SesionArchivada, error) {
	var a model.SesionArchivada
	err := r.db.WithContext(ctx).First(&a, "sesion_caja_id = ?", sesionCajaID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, caja.ErrHistorialNoEncontrado
	}
	if err != nil {
		return nil, fmt.Errorf("buscar sesión archivada: %w", err)
	}
	return &a, nil
}
