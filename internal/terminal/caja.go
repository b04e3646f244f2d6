package terminal

import (
	"context"
	"io"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// DefaultRefrescoMinimo is the minimum interval between two status calls.
const DefaultRefrescoMinimo = 2 * time.Second

// RefrescoTimeout bounds a shared status call, which no caller can cancel.
const RefrescoTimeout = 15 * time.Second

// Caja is the till's view of its point of sale. The cache is display-only and
// is written only after the server confirms a call; nothing is applied
// optimistically. One instance per process.
type Caja struct {
	transport      Transport
	puntoDeVenta   int
	refrescoMinimo time.Duration
	now            func() time.Time

	mu          sync.RWMutex
	estado      *dto.EstadoCajaResponse
	actualizado time.Time
	// version increments on every confirmed mutation; a refresh that started
	// before one must not overwrite its result.
	version uint64

	ocupado atomic.Bool
	sf      singleflight.Group
}

// New builds the till core. refrescoMinimo <= 0 uses DefaultRefrescoMinimo.
func New(transport Transport, puntoDeVenta int, refrescoMinimo time.Duration) *Caja {
	if refrescoMinimo <= 0 {
		refrescoMinimo = DefaultRefrescoMinimo
	}
	return &Caja{
		transport:      transport,
		puntoDeVenta:   puntoDeVenta,
		refrescoMinimo: refrescoMinimo,
		now:            time.Now,
	}
}

// ── Reads ─────────────────────────────────────────────────────────────────────

// Estado returns the cached status when it is younger than the minimum
// refresh interval, otherwise refreshes it.
func (c *Caja) Estado(ctx context.Context) (*dto.EstadoCajaResponse, error) {
	c.mu.RLock()
	est, at := c.estado, c.actualizado
	c.mu.RUnlock()
	if est != nil && c.now().Sub(at) < c.refrescoMinimo {
		log.Debug().Int("punto_de_venta", c.puntoDeVenta).Msg("terminal: estado desde cache")
		return copiaEstado(est), nil
	}
	return c.Refrescar(ctx)
}

// Refrescar fetches the status from the server. Overlapping calls share one
// round trip. The shared call outlives any single caller's cancellation;
// each caller still stops waiting when its own ctx is done.
func (c *Caja) Refrescar(ctx context.Context) (*dto.EstadoCajaResponse, error) {
	ch := c.sf.DoChan(strconv.Itoa(c.puntoDeVenta), func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), RefrescoTimeout)
		defer cancel()

		c.mu.RLock()
		version := c.version
		c.mu.RUnlock()

		est, err := c.transport.Estado(ctx, c.puntoDeVenta)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.version == version {
			c.estado = est
			c.actualizado = c.now()
		}
		c.mu.Unlock()
		return est, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Shared {
			log.Debug().Int("punto_de_venta", c.puntoDeVenta).Msg("terminal: refresco compartido")
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return copiaEstado(res.Val.(*dto.EstadoCajaResponse)), nil
	}
}

// copiaEstado detaches a status from the cache so callers may modify it.
func copiaEstado(est *dto.EstadoCajaResponse) *dto.EstadoCajaResponse {
	cp := *est
	cp.Movimientos = append([]caja.Movimiento(nil), est.Movimientos...)
	cp.Advertencias = append([]caja.Advertencia(nil), est.Advertencias...)
	if est.Sesion != nil {
		s := *est.Sesion
		cp.Sesion = &s
	}
	if est.Agregados != nil {
		ag := *est.Agregados
		cp.Agregados = &ag
	}
	if est.CuentaCorriente != nil {
		cc := *est.CuentaCorriente
		cp.CuentaCorriente = &cc
	}
	return &cp
}

// Sesion returns the cached open session, or nil.
func (c *Caja) Sesion() *caja.Sesion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.estado == nil || c.estado.Sesion == nil {
		return nil
	}
	s := *c.estado.Sesion
	return &s
}

// Movimientos returns a copy of the cached movement log.
func (c *Caja) Movimientos() []caja.Movimiento {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.estado == nil {
		return nil
	}
	return append([]caja.Movimiento(nil), c.estado.Movimientos...)
}

// Agregados recomputes the aggregates of the cached log, or nil when no
// session is cached.
func (c *Caja) Agregados() *caja.Agregados {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.estado == nil || c.estado.Sesion == nil {
		return nil
	}
	ag := caja.Agregar(c.estado.Sesion.MontoInicial, c.estado.Movimientos)
	return &ag
}

// EnCurso reports whether a mutating call is in flight.
func (c *Caja) EnCurso() bool { return c.ocupado.Load() }

func (c *Caja) Reporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteResponse, error) {
	return c.transport.Reporte(ctx, sesionID)
}

func (c *Caja) Historial(ctx context.Context, filter dto.HistorialFilter) (*dto.HistorialListResponse, error) {
	return c.transport.Historial(ctx, filter)
}

func (c *Caja) DetalleHistorial(ctx context.Context, sesionID uuid.UUID) (*dto.HistorialDetalleResponse, error) {
	return c.transport.DetalleHistorial(ctx, sesionID)
}

func (c *Caja) ExportarHistorial(ctx context.Context, filter dto.HistorialFilter, w io.Writer) error {
	return c.transport.ExportarHistorial(ctx, filter, w)
}

// ── Mutations ─────────────────────────────────────────────────────────────────
// At most one in flight; a second one fails locally with ErrOperacionEnCurso.
// Failures leave the cache untouched and are never retried here.

func (c *Caja) Abrir(ctx context.Context, monto decimal.Decimal, notas *string) (*dto.AperturaResponse, error) {
	if err := caja.ValidarApertura(monto); err != nil {
		return nil, err
	}
	if err := c.tomar(); err != nil {
		return nil, err
	}
	defer c.ocupado.Store(false)

	resp, err := c.transport.Abrir(ctx, dto.AbrirCajaRequest{PuntoDeVenta: c.puntoDeVenta, MontoInicial: monto, Notas: notas})
	if err != nil {
		return nil, err
	}

	sesion := resp.Sesion
	movs := []caja.Movimiento{resp.Movimiento}
	ag := caja.Agregar(sesion.MontoInicial, movs)
	det := caja.DetallarPagosCuentaCorriente(ag)
	c.guardar(&dto.EstadoCajaResponse{
		PuntoDeVenta:    c.puntoDeVenta,
		Sesion:          &sesion,
		Movimientos:     movs,
		Agregados:       &ag,
		CuentaCorriente: &det,
		Advertencias:    resp.Advertencias,
	})
	return resp, nil
}

// Registrar appends one movement to the open session.
func (c *Caja) Registrar(ctx context.Context, n caja.NuevoMovimiento) (*dto.MovimientoResponse, error) {
	if err := caja.ValidarMovimiento(n); err != nil {
		return nil, err
	}
	if err := c.tomar(); err != nil {
		return nil, err
	}
	defer c.ocupado.Store(false)

	resp, err := c.transport.RegistrarMovimiento(ctx, dto.NewMovimientoRequest(c.puntoDeVenta, n))
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.estado != nil && c.estado.Sesion != nil && c.estado.Sesion.ID == resp.Movimiento.SesionID {
		est := *c.estado
		est.Movimientos = append(append([]caja.Movimiento(nil), c.estado.Movimientos...), resp.Movimiento)
		ag := resp.Agregados
		det := caja.DetallarPagosCuentaCorriente(ag)
		est.Agregados = &ag
		est.CuentaCorriente = &det
		c.estado = &est
		c.actualizado = c.now()
	} else {
		// Cache is from another session (or empty): force the next read.
		c.estado = nil
	}
	c.version++
	c.mu.Unlock()
	return resp, nil
}

// Venta records a sale. With pagos, the sale is a split-tender "multiple".
func (c *Caja) Venta(ctx context.Context, monto decimal.Decimal, metodo caja.MetodoPago, descripcion string, pagos ...caja.Tender) (*dto.MovimientoResponse, error) {
	if len(pagos) > 0 {
		metodo = caja.MetodoMultiple
	}
	return c.Registrar(ctx, caja.NuevoMovimiento{
		Tipo:        caja.MovimientoVenta,
		Monto:       monto,
		Descripcion: descripcion,
		MetodoPago:  caja.Metodo(metodo),
		Pagos:       pagos,
	})
}

// CobroCuentaCorriente records a collection against a customer balance.
func (c *Caja) CobroCuentaCorriente(ctx context.Context, monto decimal.Decimal, metodo caja.MetodoPago, referencia, descripcion string, pagos ...caja.Tender) (*dto.MovimientoResponse, error) {
	if len(pagos) > 0 {
		metodo = caja.MetodoMultiple
	}
	n := caja.NuevoMovimiento{
		Tipo:                   caja.MovimientoDeposito,
		Monto:                  monto,
		Descripcion:            descripcion,
		MetodoPago:             caja.Metodo(metodo),
		EsCobroCuentaCorriente: true,
		Pagos:                  pagos,
	}
	if referencia != "" {
		n.Referencia = &referencia
	}
	return c.Registrar(ctx, n)
}

// Cerrar closes the session. contado nil means no physical count.
func (c *Caja) Cerrar(ctx context.Context, contado *decimal.Decimal, notas *string) (*dto.CierreResponse, error) {
	if err := c.tomar(); err != nil {
		return nil, err
	}
	defer c.ocupado.Store(false)

	resp, err := c.transport.Cerrar(ctx, dto.CerrarCajaRequest{PuntoDeVenta: c.puntoDeVenta, MontoContado: contado, Notas: notas})
	if err != nil {
		return nil, err
	}
	c.guardar(&dto.EstadoCajaResponse{
		PuntoDeVenta: c.puntoDeVenta,
		Movimientos:  []caja.Movimiento{},
		Advertencias: []caja.Advertencia{},
	})
	return resp, nil
}

func (c *Caja) tomar() error {
	if !c.ocupado.CompareAndSwap(false, true) {
		return caja.Conflicto(caja.ErrOperacionEnCurso)
	}
	return nil
}

// guardar stores the result of a confirmed mutation.
func (c *Caja) guardar(est *dto.EstadoCajaResponse) {
	c.mu.Lock()
	c.estado = est
	c.actualizado = c.now()
	c.version++
	c.mu.Unlock()
}
