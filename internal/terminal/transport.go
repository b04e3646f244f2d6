// Package terminal is the till side of the caja: a per-process object that
// keeps a display cache of the open session, serializes mutating calls and
// coalesces status refreshes. The server is always the source of truth.
package terminal

import (
	"context"
	"io"

	"blendcaja/internal/dto"

	"github.com/google/uuid"
)

// Transport is one remote round trip per call. Implementations return the
// typed errors of package caja: ValidationError and ConflictError rebuilt from
// the server's error code, TransportError for network or server failures.
type Transport interface {
	Estado(ctx context.Context, puntoDeVenta int) (*dto.EstadoCajaResponse, error)
	Abrir(ctx context.Context, req dto.AbrirCajaRequest) (*dto.AperturaResponse, error)
	RegistrarMovimiento(ctx context.Context, req dto.MovimientoRequest) (*dto.MovimientoResponse, error)
	Cerrar(ctx context.Context, req dto.CerrarCajaRequest) (*dto.CierreResponse, error)
	Reporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteResponse, error)
	Historial(ctx context.Context, filter dto.HistorialFilter) (*dto.HistorialListResponse, error)
	DetalleHistorial(ctx context.Context, sesionID uuid.UUID) (*dto.HistorialDetalleResponse, error)
	ExportarHistorial(ctx context.Context, filter dto.HistorialFilter, w io.Writer) error
}
