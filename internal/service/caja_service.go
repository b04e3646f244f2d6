package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"
	"blendcaja/internal/infra"
	"blendcaja/internal/model"
	"blendcaja/internal/repository"
	"blendcaja/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CajaService is the remote source of truth for till sessions: lifecycle,
// movement ledger and history.
type CajaService interface {
	Estado(ctx context.Context, puntoDeVenta int) (*dto.EstadoCajaResponse, error)
	Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.AperturaResponse, error)
	RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoRequest) (*dto.MovimientoResponse, error)
	Cerrar(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreResponse, error)
	ObtenerReporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteResponse, error)
	Historial(ctx context.Context, filter dto.HistorialFilter) (*dto.HistorialListResponse, error)
	DetalleHistorial(ctx context.Context, sesionID uuid.UUID) (*dto.HistorialDetalleResponse, error)
	ExportarHistorial(ctx context.Context, filter dto.HistorialFilter, w io.Writer) error
}

// CierreDispatcher enqueues the closing-report job. *worker.Dispatcher
// satisfies it; nil disables the job (unit tests).
type CierreDispatcher interface {
	EnqueueCierre(ctx context.Context, payload interface{}) error
}

type cajaService struct {
	repo       repository.CajaRepository
	reglas     caja.Reglas
	dispatcher CierreDispatcher

	// One mutex per punto de venta serializes open/append/close. The partial
	// unique index is the last line when several server replicas run.
	locks sync.Map
	now   func() time.Time
}

func NewCajaService(repo repository.CajaRepository, reglas caja.Reglas, dispatcher CierreDispatcher) CajaService {
	return &cajaService{
		repo:       repo,
		reglas:     reglas,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *cajaService) lock(puntoDeVenta int) func() {
	v, _ := s.locks.LoadOrStore(puntoDeVenta, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

// ── Estado ────────────────────────────────────────────────────────────────────

func (s *cajaService) Estado(ctx context.Context, puntoDeVenta int) (*dto.EstadoCajaResponse, error) {
	resp := &dto.EstadoCajaResponse{
		PuntoDeVenta: puntoDeVenta,
		Movimientos:  []caja.Movimiento{},
		Advertencias: []caja.Advertencia{},
	}

	sesion, err := s.repo.FindSesionAbiertaPorPDV(ctx, puntoDeVenta)
	if err != nil {
		return nil, err
	}
	if sesion == nil {
		return resp, nil
	}

	movs, err := s.movimientos(ctx, sesion.ID)
	if err != nil {
		return nil, err
	}
	ag := caja.Agregar(sesion.MontoInicial, movs)
	det := caja.DetallarPagosCuentaCorriente(ag)
	cs := sesion.ToCaja()

	resp.Sesion = &cs
	resp.Movimientos = movs
	resp.Agregados = &ag
	resp.CuentaCorriente = &det
	resp.CierreAutomaticoPendiente = s.reglas.CierreAutomaticoPendiente(sesion.OpenedAt, s.now())
	if det.Advertencia != nil {
		resp.Advertencias = append(resp.Advertencias, *det.Advertencia)
	}
	if adv := s.reglas.AdvertenciaCierre(sesion.OpenedAt, s.now()); adv != nil {
		resp.Advertencias = append(resp.Advertencias, *adv)
	}
	return resp, nil
}

// ── Abrir ─────────────────────────────────────────────────────────────────────
// Session row + synthetic opening movement, one transaction.

func (s *cajaService) Abrir(ctx context.Context, usuarioID uuid.UUID, req dto.AbrirCajaRequest) (*dto.AperturaResponse, error) {
	if err := caja.ValidarApertura(req.MontoInicial); err != nil {
		return nil, err
	}

	defer s.lock(req.PuntoDeVenta)()

	existing, err := s.repo.FindSesionAbiertaPorPDV(ctx, req.PuntoDeVenta)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, caja.Conflicto(caja.ErrSesionYaAbierta)
	}

	now := s.now()
	sesion := &model.SesionCaja{
		ID:           uuid.New(),
		PuntoDeVenta: req.PuntoDeVenta,
		Estado:       string(caja.SesionAbierta),
		MontoInicial: req.MontoInicial,
		AbiertaPor:   usuarioID,
		OpenedAt:     now,
		Notas:        req.Notas,
	}
	apertura := caja.NuevoMovimiento{
		Tipo:        caja.MovimientoApertura,
		Monto:       req.MontoInicial,
		Descripcion: "Apertura de caja",
		MetodoPago:  caja.Metodo(caja.MetodoEfectivo),
	}.Movimiento(sesion.ID, usuarioID, 1, now)

	if err := s.repo.AbrirSesion(ctx, sesion, model.NewMovimientoCaja(apertura)); err != nil {
		return nil, err
	}

	log.Info().
		Str("sesion_id", sesion.ID.String()).
		Int("punto_de_venta", sesion.PuntoDeVenta).
		Str("monto_inicial", sesion.MontoInicial.StringFixed(2)).
		Msg("caja abierta")

	advertencias := s.reglas.AdvertenciasApertura(req.MontoInicial)
	if advertencias == nil {
		advertencias = []caja.Advertencia{}
	}
	return &dto.AperturaResponse{
		Sesion:       sesion.ToCaja(),
		Movimiento:   apertura,
		Advertencias: advertencias,
	}, nil
}

// ── RegistrarMovimiento ───────────────────────────────────────────────────────
// Movements are immutable: no Update/Delete. Amount sign is normalized.

func (s *cajaService) RegistrarMovimiento(ctx context.Context, usuarioID uuid.UUID, req dto.MovimientoRequest) (*dto.MovimientoResponse, error) {
	nuevo := req.ToNuevo()
	if err := caja.ValidarMovimiento(nuevo); err != nil {
		return nil, err
	}

	defer s.lock(req.PuntoDeVenta)()

	sesion, err := s.repo.FindSesionAbiertaPorPDV(ctx, req.PuntoDeVenta)
	if err != nil {
		return nil, err
	}
	if sesion == nil {
		return nil, caja.Conflicto(caja.ErrMovimientoSinSesion)
	}

	if nuevo.EsCobroCuentaCorriente && nuevo.Referencia != nil {
		dup, err := s.repo.ExisteCobroConReferencia(ctx, *nuevo.Referencia)
		if err != nil {
			return nil, err
		}
		if dup {
			return nil, caja.Conflicto(caja.ErrReferenciaDuplicada)
		}
	}

	movs, err := s.movimientos(ctx, sesion.ID)
	if err != nil {
		return nil, err
	}
	if err := s.reglas.VerificarEfectivo(caja.Agregar(sesion.MontoInicial, movs), nuevo); err != nil {
		return nil, err
	}

	mov := nuevo.Movimiento(sesion.ID, usuarioID, len(movs)+1, s.now())
	if err := s.repo.CreateMovimiento(ctx, model.NewMovimientoCaja(mov)); err != nil {
		return nil, err
	}

	log.Info().
		Str("sesion_id", sesion.ID.String()).
		Int("punto_de_venta", sesion.PuntoDeVenta).
		Str("tipo", string(mov.Tipo)).
		Str("monto", mov.Monto.StringFixed(2)).
		Int("orden", mov.Orden).
		Msg("movimiento registrado")

	return &dto.MovimientoResponse{
		Movimiento: mov,
		Agregados:  caja.Agregar(sesion.MontoInicial, append(movs, mov)),
	}, nil
}

// ── Cerrar ────────────────────────────────────────────────────────────────────
// Reconciles, writes the closing movement, flips the session and archives it
// with frozen numbers, all in one transaction. The report job is best effort.

func (s *cajaService) Cerrar(ctx context.Context, usuarioID uuid.UUID, req dto.CerrarCajaRequest) (*dto.CierreResponse, error) {
	if err := s.reglas.ValidarCierre(req.MontoContado); err != nil {
		return nil, err
	}

	defer s.lock(req.PuntoDeVenta)()

	sesion, err := s.repo.FindSesionAbiertaPorPDV(ctx, req.PuntoDeVenta)
	if err != nil {
		return nil, err
	}
	if sesion == nil {
		return nil, caja.Conflicto(caja.ErrSesionNoAbierta)
	}

	movs, err := s.movimientos(ctx, sesion.ID)
	if err != nil {
		return nil, err
	}
	ag := caja.Agregar(sesion.MontoInicial, movs)
	resumen := caja.ResumirCierre(sesion.ToCaja(), ag)
	conciliacion := caja.Conciliar(resumen.Totales.EfectivoFisicoEsperado, req.MontoContado)
	det := caja.DetallarPagosCuentaCorriente(ag)

	now := s.now()
	cierre := caja.NuevoMovimiento{
		Tipo:        caja.MovimientoCierre,
		Monto:       conciliacion.Contado,
		Descripcion: "Cierre de caja",
		MetodoPago:  caja.Metodo(caja.MetodoEfectivo),
	}.Movimiento(sesion.ID, usuarioID, len(movs)+1, now)

	contado := conciliacion.Contado
	diferencia := conciliacion.Diferencia
	sesion.Estado = string(caja.SesionCerrada)
	sesion.MontoCierre = &contado
	sesion.CerradaPor = &usuarioID
	sesion.ClosedAt = &now
	sesion.Diferencia = &diferencia
	sesion.NotasCierre = req.Notas

	archivo := model.NewSesionArchivada(sesion.ToCaja(), ag, resumen, conciliacion, len(movs)+1)
	if err := s.repo.CerrarSesion(ctx, sesion, model.NewMovimientoCaja(cierre), archivo); err != nil {
		return nil, err
	}

	log.Info().
		Str("sesion_id", sesion.ID.String()).
		Int("punto_de_venta", sesion.PuntoDeVenta).
		Str("esperado", conciliacion.Esperado.StringFixed(2)).
		Str("contado", conciliacion.Contado.StringFixed(2)).
		Str("diferencia", conciliacion.Diferencia.StringFixed(2)).
		Str("severidad", string(conciliacion.Severidad)).
		Msg("caja cerrada")

	if s.dispatcher != nil {
		payload := worker.CierreJobPayload{SesionCajaID: sesion.ID.String()}
		if err := s.dispatcher.EnqueueCierre(ctx, payload); err != nil {
			log.Warn().Err(err).Str("sesion_id", sesion.ID.String()).Msg("no se pudo encolar el reporte de cierre")
		}
	}

	advertencias := append([]caja.Advertencia{}, conciliacion.Advertencias...)
	if det.Advertencia != nil {
		advertencias = append(advertencias, *det.Advertencia)
	}
	return &dto.CierreResponse{
		Sesion:          sesion.ToCaja(),
		Agregados:       ag,
		Resumen:         resumen,
		Conciliacion:    conciliacion,
		CuentaCorriente: det,
		Advertencias:    advertencias,
	}, nil
}

// ── ObtenerReporte ────────────────────────────────────────────────────────────

func (s *cajaService) ObtenerReporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteResponse, error) {
	sesion, err := s.repo.FindSesionByID(ctx, sesionID)
	if err != nil {
		return nil, err
	}
	movs, err := s.movimientos(ctx, sesion.ID)
	if err != nil {
		return nil, err
	}

	resp := &dto.ReporteResponse{
		Sesion:      sesion.ToCaja(),
		Movimientos: movs,
	}

	if sesion.Estado == string(caja.SesionAbierta) {
		resp.Agregados = caja.Agregar(sesion.MontoInicial, movs)
		resp.Resumen = caja.ResumirCierre(resp.Sesion, resp.Agregados)
		resp.CuentaCorriente = caja.DetallarPagosCuentaCorriente(resp.Agregados)
		return resp, nil
	}

	// Closed: frozen numbers only, never recomputed.
	archivo, err := s.repo.FindArchivo(ctx, sesion.ID)
	if err != nil {
		return nil, err
	}
	resp.Agregados = archivo.Agregados
	resp.Resumen = archivo.Resumen
	resp.CuentaCorriente = caja.DetallarPagosCuentaCorriente(archivo.Agregados)
	resp.Conciliacion = &archivo.Conciliacion
	resp.Ganancias = &archivo.Ganancias
	return resp, nil
}

// ── Historial ─────────────────────────────────────────────────────────────────

func (s *cajaService) Historial(ctx context.Context, filter dto.HistorialFilter) (*dto.HistorialListResponse, error) {
	rows, total, err := s.repo.ListHistorial(ctx, filter)
	if err != nil {
		return nil, err
	}

	// Period totals cover every matching session, not just this page.
	todos := rows
	if filter.Limit > 0 && int64(len(rows)) < total {
		sinPaginar := filter
		sinPaginar.Limit = 0
		if todos, _, err = s.repo.ListHistorial(ctx, sinPaginar); err != nil {
			return nil, err
		}
	}

	items := make([]dto.HistorialItem, 0, len(rows))
	for i := range rows {
		items = append(items, historialItem(&rows[i]))
	}
	return &dto.HistorialListResponse{
		Data:      items,
		Total:     total,
		Page:      filter.Page,
		Limit:     filter.Limit,
		Ganancias: sumarGanancias(todos),
	}, nil
}

func (s *cajaService) DetalleHistorial(ctx context.Context, sesionID uuid.UUID) (*dto.HistorialDetalleResponse, error) {
	archivo, err := s.repo.FindArchivo(ctx, sesionID)
	if err != nil {
		return nil, err
	}
	movs, err := s.movimientos(ctx, sesionID)
	if err != nil {
		return nil, err
	}
	return &dto.HistorialDetalleResponse{
		HistorialItem: historialItem(archivo),
		Notas:         archivo.Notas,
		NotasCierre:   archivo.NotasCierre,
		Agregados:     archivo.Agregados,
		Resumen:       archivo.Resumen,
		Conciliacion:  archivo.Conciliacion,
		Ganancias:     archivo.Ganancias,
		Detalle:       movs,
	}, nil
}

// ExportarHistorial writes every session matching filter (pagination ignored)
// as an XLSX workbook.
func (s *cajaService) ExportarHistorial(ctx context.Context, filter dto.HistorialFilter, w io.Writer) error {
	filter.Limit = 0
	rows, _, err := s.repo.ListHistorial(ctx, filter)
	if err != nil {
		return err
	}
	items := make([]dto.HistorialItem, 0, len(rows))
	for i := range rows {
		items = append(items, historialItem(&rows[i]))
	}
	return infra.WriteHistorialXLSX(w, items, sumarGanancias(rows))
}

// ── helpers ───────────────────────────────────────────────────────────────────

func (s *cajaService) movimientos(ctx context.Context, sesionID uuid.UUID) ([]caja.Movimiento, error) {
	rows, err := s.repo.ListMovimientos(ctx, sesionID)
	if err != nil {
		return nil, err
	}
	return model.MovimientosToCaja(rows), nil
}

func historialItem(a *model.SesionArchivada) dto.HistorialItem {
	return dto.HistorialItem{
		SesionCajaID:      a.SesionCajaID,
		PuntoDeVenta:      a.PuntoDeVenta,
		AbiertaPor:        a.AbiertaPor,
		CerradaPor:        a.CerradaPor,
		OpenedAt:          a.OpenedAt,
		ClosedAt:          a.ClosedAt,
		MontoInicial:      a.MontoInicial,
		MontoEsperado:     a.MontoEsperado,
		MontoContado:      a.MontoContado,
		Diferencia:        a.Diferencia,
		EstadoDiferencia:  caja.EstadoDiferencia(a.EstadoDiferencia),
		Severidad:         caja.Severidad(a.Severidad),
		MontoTotalGeneral: a.Agregados.MontoTotalGeneral,
		Movimientos:       a.Movimientos,
	}
}

func sumarGanancias(rows []model.SesionArchivada) caja.Ganancias {
	gs := make([]caja.Ganancias, 0, len(rows))
	for i := range rows {
		gs = append(gs, rows[i].Ganancias)
	}
	return caja.SumarGanancias(gs...)
}

// IsNotFound reports whether err means the requested session does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, caja.ErrSesionNoEncontrada) || errors.Is(err, caja.ErrHistorialNoEncontrado)
}
