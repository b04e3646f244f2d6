package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"
	"blendcaja/internal/infra"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func responder(status int, body interface{}) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}
}

func fallo(code, msg string) map[string]interface{} {
	return map[string]interface{}{"success": false, "data": nil, "message": msg, "code": code}
}

func TestHTTPTransport_Estado(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		responder(http.StatusOK, map[string]interface{}{
			"success": true,
			"data": map[string]interface{}{
				"punto_de_venta": 3,
				"sesion":         map[string]interface{}{"id": uuid.NewString(), "punto_de_venta": 3, "estado": "abierta", "monto_inicial": "1000"},
				"movimientos":    []interface{}{},
			},
		})(w, r)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL+"/", "tok", time.Second)
	est, err := tr.Estado(context.Background(), 3)
	require.NoError(t, err)

	assert.Equal(t, "/v1/caja/estado", got.URL.Path)
	assert.Equal(t, "3", got.URL.Query().Get("punto_de_venta"))
	assert.Equal(t, "Bearer tok", got.Header.Get("Authorization"))
	require.NotNil(t, est.Sesion)
	assert.Equal(t, "1000", est.Sesion.MontoInicial.String())
}

func TestHTTPTransport_MapeoDeErrores(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   interface{}
		check  func(t *testing.T, err error)
	}{
		{"conflicto por codigo", http.StatusConflict, fallo("sesion_ya_abierta", "ya existe"), func(t *testing.T, err error) {
			assert.True(t, caja.IsConflict(err))
			assert.ErrorIs(t, err, caja.ErrSesionYaAbierta)
		}},
		{"validacion por codigo", http.StatusUnprocessableEntity, fallo("efectivo_negativo", "negativo"), func(t *testing.T, err error) {
			assert.True(t, caja.IsValidation(err))
			assert.ErrorIs(t, err, caja.ErrEfectivoNegativo)
		}},
		{"validacion de campos", http.StatusUnprocessableEntity, map[string]interface{}{
			"success": false, "message": "Error de validacion", "code": "validacion", "fields": map[string]string{"MontoInicial": "gt"},
		}, func(t *testing.T, err error) {
			var v *caja.ValidationError
			require.ErrorAs(t, err, &v)
			assert.Equal(t, "MontoInicial", v.Campo)
		}},
		{"conflicto desconocido", http.StatusConflict, fallo("otro", "algo"), func(t *testing.T, err error) {
			assert.True(t, caja.IsConflict(err))
		}},
		{"no encontrado", http.StatusNotFound, fallo("", ""), func(t *testing.T, err error) {
			assert.ErrorIs(t, err, caja.ErrSesionNoEncontrada)
		}},
		{"error del servidor", http.StatusInternalServerError, fallo("", "Error interno del servidor"), func(t *testing.T, err error) {
			var te *caja.TransportError
			require.ErrorAs(t, err, &te)
			assert.True(t, te.Retryable)
			assert.Equal(t, http.StatusInternalServerError, te.Status)
		}},
		{"no autorizado", http.StatusUnauthorized, fallo("", "Token invalido o expirado"), func(t *testing.T, err error) {
			var te *caja.TransportError
			require.ErrorAs(t, err, &te)
			assert.False(t, te.Retryable)
		}},
		{"respuesta sin envelope", http.StatusOK, "hola", func(t *testing.T, err error) {
			assert.ErrorIs(t, err, caja.ErrRespuestaInvalida)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(responder(tc.status, tc.body))
			defer srv.Close()

			_, err := NewHTTPTransport(srv.URL, "", time.Second).Abrir(context.Background(), dto.AbrirCajaRequest{})
			require.Error(t, err)
			tc.check(t, err)
		})
	}
}

func TestHTTPTransport_ServidorCaido(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewHTTPTransport(url, "", time.Second).Estado(context.Background(), 1)

	var te *caja.TransportError
	require.ErrorAs(t, err, &te)
	assert.True(t, te.Retryable)
	assert.ErrorIs(t, err, caja.ErrServidorNoDisponible)
}

func TestHTTPTransport_CircuitoAbierto(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		responder(http.StatusServiceUnavailable, fallo("", "down"))(w, r)
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "", time.Second)
	for i := 0; i < infra.DefaultCBConfig().FailureThreshold; i++ {
		_, err := tr.Estado(context.Background(), 1)
		require.Error(t, err)
	}
	assert.Equal(t, infra.CBOpen, tr.Breaker())

	_, err := tr.Estado(context.Background(), 1)
	assert.ErrorIs(t, err, caja.ErrServidorNoDisponible)
	assert.ErrorIs(t, err, infra.ErrCircuitOpen)
	assert.Equal(t, int32(infra.DefaultCBConfig().FailureThreshold), hits.Load())
}

func TestHTTPTransport_ConflictosNoAbrenElCircuito(t *testing.T) {
	srv := httptest.NewServer(responder(http.StatusConflict, fallo("movimiento_sin_sesion", "sin sesión")))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "", time.Second)
	for i := 0; i < 10; i++ {
		_, err := tr.RegistrarMovimiento(context.Background(), dto.MovimientoRequest{Tipo: "sale"})
		assert.ErrorIs(t, err, caja.ErrMovimientoSinSesion)
	}
	assert.Equal(t, infra.CBClosed, tr.Breaker())
}

func TestHTTPTransport_Exportar(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = w.Write([]byte("PK-xlsx"))
	}))
	defer srv.Close()

	desde := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	err := NewHTTPTransport(srv.URL, "", time.Second).
		ExportarHistorial(context.Background(), dto.HistorialFilter{Desde: &desde, PuntoDeVenta: 2}, &buf)
	require.NoError(t, err)

	assert.Equal(t, "PK-xlsx", buf.String())
	assert.Equal(t, "desde=2026-03-01&punto_de_venta=2", query)
}
