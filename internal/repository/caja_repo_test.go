package repository_test

import (
	"context"
	"testing"
	"time"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"
	"blendcaja/internal/infra"
	"blendcaja/internal/model"
	"blendcaja/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), infra.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	// Every connection to :memory: is a different database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.RunMigrations(db))
	return db
}

var (
	usuario = uuid.New()
	t0      = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
)

func nuevaSesion(pdv int, monto string, at time.Time) (*model.SesionCaja, *model.MovimientoCaja) {
	s := &model.SesionCaja{
		ID:           uuid.New(),
		PuntoDeVenta: pdv,
		Estado:       string(caja.SesionAbierta),
		MontoInicial: decimal.RequireFromString(monto),
		AbiertaPor:   usuario,
		OpenedAt:     at,
	}
	apertura := caja.NuevoMovimiento{
		Tipo:       caja.MovimientoApertura,
		Monto:      s.MontoInicial,
		MetodoPago: caja.Metodo(caja.MetodoEfectivo),
	}.Movimiento(s.ID, usuario, 1, at)
	return s, model.NewMovimientoCaja(apertura)
}

func movimiento(sesionID uuid.UUID, orden int, n caja.NuevoMovimiento) *model.MovimientoCaja {
	return model.NewMovimientoCaja(n.Movimiento(sesionID, usuario, orden, t0.Add(time.Duration(orden)*time.Minute)))
}

// cerrar closes s at closedAt with an exact count and returns the archive row.
func cerrar(t *testing.T, repo repository.CajaRepository, s *model.SesionCaja, closedAt time.Time) *model.SesionArchivada {
	t.Helper()
	ctx := context.Background()
	rows, err := repo.ListMovimientos(ctx, s.ID)
	require.NoError(t, err)
	movs := model.MovimientosToCaja(rows)
	ag := caja.Agregar(s.MontoInicial, movs)
	resumen := caja.ResumirCierre(s.ToCaja(), ag)
	conc := caja.Conciliar(resumen.Totales.EfectivoFisicoEsperado, nil)

	cierre := movimiento(s.ID, len(movs)+1, caja.NuevoMovimiento{
		Tipo: caja.MovimientoCierre, Monto: conc.Contado, MetodoPago: caja.Metodo(caja.MetodoEfectivo),
	})
	contado := conc.Contado
	s.Estado = string(caja.SesionCerrada)
	s.MontoCierre = &contado
	s.CerradaPor = &usuario
	s.ClosedAt = &closedAt
	s.Diferencia = &conc.Diferencia

	archivo := model.NewSesionArchivada(s.ToCaja(), ag, resumen, conc, len(movs)+1)
	require.NoError(t, repo.CerrarSesion(ctx, s, cierre, archivo))
	return archivo
}

func TestAbrirSesion_YBuscarAbierta(t *testing.T) {
	repo := repository.NewCajaRepository(newTestDB(t))
	ctx := context.Background()

	none, err := repo.FindSesionAbiertaPorPDV(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, none)

	s, ap := nuevaSesion(1, "5000", t0)
	require.NoError(t, repo.AbrirSesion(ctx, s, ap))

	found, err := repo.FindSesionAbiertaPorPDV(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, s.ID, found.ID)
	assert.True(t, found.MontoInicial.Equal(decimal.NewFromInt(5000)))

	movs, err := repo.ListMovimientos(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, movs, 1)
	assert.Equal(t, "opening", movs[0].Tipo)
}

func TestAbrirSesion_IndiceUnicoPorPDV(t *testing.T) {
	repo := repository.NewCajaRepository(newTestDB(t))
	ctx := context.Background()

	s1, ap1 := nuevaSesion(1, "100", t0)
	require.NoError(t, repo.AbrirSesion(ctx, s1, ap1))

	s2, ap2 := nuevaSesion(1, "200", t0)
	err := repo.AbrirSesion(ctx, s2, ap2)
	assert.True(t, caja.IsConflict(err))
	assert.ErrorIs(t, err, caja.ErrSesionYaAbierta)

	// The failed open left nothing behind.
	_, err = repo.FindSesionByID(ctx, s2.ID)
	assert.ErrorIs(t, err, caja.ErrSesionNoEncontrada)

	// Another punto de venta is independent.
	s3, ap3 := nuevaSesion(2, "300", t0)
	require.NoError(t, repo.AbrirSesion(ctx, s3, ap3))
}

func TestCreateMovimiento_ConPagos(t *testing.T) {
	repo := repository.NewCajaRepository(newTestDB(t))
	ctx := context.Background()
	s, ap := nuevaSesion(1, "1000", t0)
	require.NoError(t, repo.AbrirSesion(ctx, s, ap))

	require.NoError(t, repo.CreateMovimiento(ctx, movimiento(s.ID, 2, caja.NuevoMovimiento{
		Tipo: caja.MovimientoVenta, Monto: decimal.NewFromInt(1000), Descripcion: "mixta",
		MetodoPago: caja.Metodo(caja.MetodoMultiple),
		Pagos: []caja.Tender{
			{Metodo: caja.MetodoEfectivo, Monto: decimal.NewFromInt(600)},
			{Metodo: caja.MetodoTarjetaCredito, Monto: decimal.NewFromInt(400)},
		},
	})))
	require.NoError(t, repo.CreateMovimiento(ctx, movimiento(s.ID, 3, caja.NuevoMovimiento{
		Tipo: caja.MovimientoGasto, Monto: decimal.NewFromInt(50), Descripcion: "taxi",
	})))

	rows, err := repo.ListMovimientos(ctx, s.ID)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Len(t, rows[1].Pagos, 2)
	assert.Equal(t, "efectivo", rows[1].Pagos[0].Metodo)
	assert.Equal(t, "tarjeta_credito", rows[1].Pagos[1].Metodo)
	assert.True(t, rows[2].Monto.Equal(decimal.NewFromInt(-50)))

	ag := caja.Agregar(s.MontoInicial, model.MovimientosToCaja(rows))
	assert.Equal(t, "1550", ag.MontoActual.String())
}

func TestCreateMovimiento_OrdenDuplicado(t *testing.T) {
	repo := repository.NewCajaRepository(newTestDB(t))
	ctx := context.Background()
	s, ap := nuevaSesion(1, "1000", t0)
	require.NoError(t, repo.AbrirSesion(ctx, s, ap))

	venta := caja.NuevoMovimiento{Tipo: caja.MovimientoVenta, Monto: decimal.NewFromInt(10), MetodoPago: caja.Metodo(caja.MetodoEfectivo)}
	require.NoError(t, repo.CreateMovimiento(ctx, movimiento(s.ID, 2, venta)))

	err := repo.CreateMovimiento(ctx, movimiento(s.ID, 2, venta))
	assert.True(t, caja.IsConflict(err))
	assert.ErrorIs(t, err, caja.ErrOperacionEnCurso)
}

func TestExisteCobroConReferencia(t *testing.T) {
	repo := repository.NewCajaRepository(newTestDB(t))
	ctx := context.Background()
	s, ap := nuevaSesion(1, "1000", t0)
	require.NoError(t, repo.AbrirSesion(ctx, s, ap))

	ref := "REC-001"
	require.NoError(t, repo.CreateMovimiento(ctx, movimiento(s.ID, 2, caja.NuevoMovimiento{
		Tipo: caja.MovimientoDeposito, Monto: decimal.NewFromInt(200), MetodoPago: caja.Metodo(caja.MetodoEfectivo),
		EsCobroCuentaCorriente: true, Referencia: &ref,
	})))
	// A plain deposit with a reference is not an AR collection.
	otra := "DEP-001"
	require.NoError(t, repo.CreateMovimiento(ctx, movimiento(s.ID, 3, caja.NuevoMovimiento{
		Tipo: caja.MovimientoDeposito, Monto: decimal.NewFromInt(100), Referencia: &otra,
	})))

	ok, err := repo.ExisteCobroConReferencia(ctx, "REC-001")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.ExisteCobroConReferencia(ctx, "DEP-001")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCerrarSesion_ArchivaYNoCierraDosVeces(t *testing.T) {
	repo := repository.NewCajaRepository(newTestDB(t))
	ctx := context.Background()
	s, ap := nuevaSesion(1, "1000", t0)
	require.NoError(t, repo.AbrirSesion(ctx, s, ap))
	require.NoError(t, repo.CreateMovimiento(ctx, movimiento(s.ID, 2, caja.NuevoMovimiento{
		Tipo: caja.MovimientoVenta, Monto: decimal.NewFromInt(250), MetodoPago: caja.Metodo(caja.MetodoTransferencia),
	})))

	cerrar(t, repo, s, t0.Add(8*time.Hour))

	abierta, err := repo.FindSesionAbiertaPorPDV(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, abierta)

	got, err := repo.FindSesionByID(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, "cerrada", got.Estado)
	require.NotNil(t, got.MontoCierre)
	assert.True(t, got.MontoCierre.Equal(decimal.NewFromInt(1000)))

	archivo, err := repo.FindArchivo(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, archivo.Movimientos)
	assert.Equal(t, "250", archivo.Agregados.VentasTransferencia.String())
	assert.Equal(t, "250", archivo.Resumen.OtrosMedios.Total.String())
	assert.Equal(t, "250", archivo.Ganancias.Transferencia.String())
	assert.Equal(t, caja.DiferenciaBalanceada, archivo.Conciliacion.Estado)
	assert.False(t, archivo.ConteoFisico)

	// A reopen of the same pdv is allowed once closed.
	s2, ap2 := nuevaSesion(1, "500", t0.Add(9*time.Hour))
	require.NoError(t, repo.AbrirSesion(ctx, s2, ap2))

	// Closing the old session again conflicts and writes nothing.
	again := model.NewSesionArchivada(s.ToCaja(), archivo.Agregados, archivo.Resumen, archivo.Conciliacion, 4)
	cierre := movimiento(s.ID, 4, caja.NuevoMovimiento{Tipo: caja.MovimientoCierre, Monto: decimal.NewFromInt(1000)})
	err = repo.CerrarSesion(ctx, s, cierre, again)
	assert.True(t, caja.IsConflict(err))
	assert.ErrorIs(t, err, caja.ErrSesionNoAbierta)

	rows, err := repo.ListMovimientos(ctx, s.ID)
	require.NoError(t, err)
	assert.Len(t, rows, 3)
}

func TestFindArchivo_NoEncontrado(t *testing.T) {
	repo := repository.NewCajaRepository(newTestDB(t))

	_, err := repo.FindArchivo(context.Background(), uuid.New())

	assert.ErrorIs(t, err, caja.ErrHistorialNoEncontrado)
}

func TestListHistorial_FiltrosYPaginacion(t *testing.T) {
	repo := repository.NewCajaRepository(newTestDB(t))
	ctx := context.Background()

	dias := []struct {
		pdv      int
		closedAt time.Time
	}{
		{1, time.Date(2026, 3, 1, 20, 0, 0, 0, time.UTC)},
		{1, time.Date(2026, 3, 2, 23, 30, 0, 0, time.UTC)},
		{2, time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC)},
		{1, time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)},
	}
	for _, d := range dias {
		s, ap := nuevaSesion(d.pdv, "100", d.closedAt.Add(-8*time.Hour))
		require.NoError(t, repo.AbrirSesion(ctx, s, ap))
		cerrar(t, repo, s, d.closedAt)
	}

	all, total, err := repo.ListHistorial(ctx, dto.HistorialFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	require.Len(t, all, 4)
	assert.True(t, all[0].ClosedAt.After(all[3].ClosedAt), "newest first")

	page2, total, err := repo.ListHistorial(ctx, dto.HistorialFilter{Page: 2, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, int64(4), total)
	assert.Len(t, page2, 1)

	pdv1, total, err := repo.ListHistorial(ctx, dto.HistorialFilter{PuntoDeVenta: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, pdv1, 3)

	// Hasta covers the whole day, including 23:30.
	desde := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	hasta := desde
	dia2, total, err := repo.ListHistorial(ctx, dto.HistorialFilter{Desde: &desde, Hasta: &hasta})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, dia2, 2)
}
