package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestParsePagos(t *testing.T) {
	pagos, err := parsePagos([]string{"efectivo=600", " tarjeta_credito = 400.50"})
	require.NoError(t, err)
	require.Len(t, pagos, 2)
	assert.Equal(t, caja.MetodoEfectivo, pagos[0].Metodo)
	assert.Equal(t, "600", pagos[0].Monto.String())
	assert.Equal(t, caja.MetodoTarjetaCredito, pagos[1].Metodo)
	assert.Equal(t, "400.5", pagos[1].Monto.String())

	_, err = parsePagos([]string{"efectivo"})
	assert.Error(t, err)
	_, err = parsePagos([]string{"efectivo=abc"})
	assert.Error(t, err)

	none, err := parsePagos(nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 2, exitCode(&caja.ValidationError{Err: caja.ErrMontoInvalido}))
	assert.Equal(t, 3, exitCode(caja.Conflicto(caja.ErrSesionYaAbierta)))
	assert.Equal(t, 4, exitCode(&caja.TransportError{Op: "estado", Err: caja.ErrServidorNoDisponible}))
	assert.Equal(t, 1, exitCode(errors.New("otro")))
}

func TestImprimirComo(t *testing.T) {
	ag := caja.Agregar(decimal.NewFromInt(5000), []caja.Movimiento{{
		Tipo: caja.MovimientoVenta, MetodoPago: caja.Metodo(caja.MetodoEfectivo), Monto: decimal.NewFromInt(1000),
	}})

	var js bytes.Buffer
	require.NoError(t, imprimirComo(&js, "json", ag, nil))
	var m map[string]interface{}
	require.NoError(t, json.Unmarshal(js.Bytes(), &m))
	assert.Equal(t, "6000", m["monto_actual"])

	var ym bytes.Buffer
	require.NoError(t, imprimirComo(&ym, "yaml", ag, nil))
	var y map[string]interface{}
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &y))
	assert.Equal(t, "6000", y["monto_actual"])

	var tb bytes.Buffer
	require.NoError(t, imprimirComo(&tb, "table", ag, func(t *tabla) { tablaAgregados(t, &ag) }))
	assert.Contains(t, tb.String(), "Efectivo en caja")
	assert.Contains(t, tb.String(), "6000.00")
}

func TestEstadoCmd_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/caja/estado", r.URL.Path)
		assert.Equal(t, "4", r.URL.Query().Get("punto_de_venta"))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"success": true,
			"data":    dto.EstadoCajaResponse{PuntoDeVenta: 4, Movimientos: []caja.Movimiento{}},
		})
	}))
	defer srv.Close()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--server", srv.URL, "--punto-de-venta", "4", "-o", "json", "estado"})
	require.NoError(t, rootCmd.Execute())

	var est dto.EstadoCajaResponse
	require.NoError(t, json.Unmarshal(out.Bytes(), &est))
	assert.Equal(t, 4, est.PuntoDeVenta)
	assert.Nil(t, est.Sesion)
}
