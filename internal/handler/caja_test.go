package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"blendcaja/internal/caja"
	"blendcaja/internal/handler"
	"blendcaja/internal/infra"
	"blendcaja/internal/middleware"
	"blendcaja/internal/repository"
	"blendcaja/internal/router"
	"blendcaja/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

const testSecret = "test-secret"

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields"`
}

func setupRouter(t *testing.T, reglas caja.Reglas) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), infra.GormConfig())
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, infra.RunMigrations(db))

	svc := service.NewCajaService(repository.NewCajaRepository(db), reglas, nil)
	r := gin.New()
	v1 := r.Group("/v1", middleware.JWTAuth(testSecret))
	router.Caja(v1, handler.NewCajaHandler(svc, 1))
	return r
}

func token(t *testing.T, rol string, pdv *int) string {
	t.Helper()
	claims := &middleware.JWTClaims{
		UserID:       uuid.NewString(),
		Username:     "test",
		Rol:          rol,
		PuntoDeVenta: pdv,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func request(t *testing.T, r *gin.Engine, method, path, tok string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	var env envelope
	if w.Header().Get("Content-Type") == "application/json; charset=utf-8" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func pdv(n int) *int { return &n }

func TestCaja_SinToken(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})

	w, env := request(t, r, http.MethodGet, "/v1/caja/estado", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
}

func TestCaja_CicloCompleto(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})
	tok := token(t, middleware.RolCajero, nil)

	w, env := request(t, r, http.MethodPost, "/v1/caja/abrir", tok, map[string]interface{}{"monto_inicial": 5000})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var apertura struct {
		Sesion struct {
			ID           string `json:"id"`
			PuntoDeVenta int    `json:"punto_de_venta"`
		} `json:"sesion"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &apertura))
	assert.Equal(t, 1, apertura.Sesion.PuntoDeVenta, "server default pdv")

	w, _ = request(t, r, http.MethodPost, "/v1/caja/movimientos", tok, map[string]interface{}{
		"tipo": "sale", "monto": 1000, "descripcion": "Venta", "metodo_pago": "efectivo",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = request(t, r, http.MethodGet, "/v1/caja/estado", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var estado struct {
		Agregados struct {
			MontoActual string `json:"monto_actual"`
		} `json:"agregados"`
		Movimientos []json.RawMessage `json:"movimientos"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &estado))
	assert.Equal(t, "6000", estado.Agregados.MontoActual)
	assert.Len(t, estado.Movimientos, 2)

	w, env = request(t, r, http.MethodPost, "/v1/caja/cerrar", tok, map[string]interface{}{"monto_contado": 5950})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cierre struct {
		Conciliacion struct {
			Diferencia string `json:"diferencia"`
			Estado     string `json:"estado"`
		} `json:"conciliacion"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &cierre))
	assert.Equal(t, "-50", cierre.Conciliacion.Diferencia)
	assert.Equal(t, "faltante", cierre.Conciliacion.Estado)

	w, env = request(t, r, http.MethodGet, "/v1/caja/"+apertura.Sesion.ID+"/reporte", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, env.Success)

	w, _ = request(t, r, http.MethodGet, "/v1/caja/historial/"+apertura.Sesion.ID, tok, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCaja_AperturaDuplicada409(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})
	tok := token(t, middleware.RolCajero, nil)

	w, _ := request(t, r, http.MethodPost, "/v1/caja/abrir", tok, map[string]interface{}{"monto_inicial": 100})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := request(t, r, http.MethodPost, "/v1/caja/abrir", tok, map[string]interface{}{"monto_inicial": 100})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "sesion_ya_abierta", env.Code)
}

func TestCaja_JSONInvalido400(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})

	w, env := request(t, r, http.MethodPost, "/v1/caja/abrir", token(t, middleware.RolCajero, nil), "{not json")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "json_invalido", env.Code)
}

func TestCaja_Validacion422(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})
	tok := token(t, middleware.RolCajero, nil)

	w, env := request(t, r, http.MethodPost, "/v1/caja/abrir", tok, map[string]interface{}{"monto_inicial": 0})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validacion", env.Code)
	assert.Contains(t, env.Fields, "MontoInicial")

	w, _ = request(t, r, http.MethodPost, "/v1/caja/abrir", tok, map[string]interface{}{"monto_inicial": 100})
	require.Equal(t, http.StatusCreated, w.Code)

	w, env = request(t, r, http.MethodPost, "/v1/caja/movimientos", tok, map[string]interface{}{
		"tipo": "closing", "monto": 10, "metodo_pago": "efectivo",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "tipo_sintetico", env.Code)
}

func TestCaja_MovimientoSinSesion409(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})

	w, env := request(t, r, http.MethodPost, "/v1/caja/movimientos", token(t, middleware.RolCajero, nil), map[string]interface{}{
		"tipo": "sale", "monto": 10, "metodo_pago": "efectivo",
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "movimiento_sin_sesion", env.Code)
}

func TestCaja_CajeroDeOtroPDV403(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})
	tok := token(t, middleware.RolCajero, pdv(2))

	w, _ := request(t, r, http.MethodPost, "/v1/caja/abrir", tok, map[string]interface{}{"monto_inicial": 100, "punto_de_venta": 1})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Without an explicit pdv the claim applies.
	w, env := request(t, r, http.MethodPost, "/v1/caja/abrir", tok, map[string]interface{}{"monto_inicial": 100})
	require.Equal(t, http.StatusCreated, w.Code)
	var apertura struct {
		Sesion struct {
			PuntoDeVenta int `json:"punto_de_venta"`
		} `json:"sesion"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &apertura))
	assert.Equal(t, 2, apertura.Sesion.PuntoDeVenta)

	// A supervisor may act on any till.
	w, _ = request(t, r, http.MethodGet, "/v1/caja/estado?punto_de_venta=2", token(t, middleware.RolSupervisor, pdv(1)), nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCaja_CajeroNoLeeSesionesDeOtroPDV(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})
	sup := token(t, middleware.RolSupervisor, nil)

	w, env := request(t, r, http.MethodPost, "/v1/caja/abrir", sup, map[string]interface{}{"monto_inicial": 100, "punto_de_venta": 2})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var apertura struct {
		Sesion struct {
			ID string `json:"id"`
		} `json:"sesion"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &apertura))
	id := apertura.Sesion.ID

	ajeno := token(t, middleware.RolCajero, pdv(1))
	propio := token(t, middleware.RolCajero, pdv(2))

	w, _ = request(t, r, http.MethodGet, "/v1/caja/"+id+"/reporte", ajeno, nil)
	assert.Equal(t, http.StatusForbidden, w.Code, "open session report")

	w, _ = request(t, r, http.MethodPost, "/v1/caja/cerrar", sup, map[string]interface{}{"punto_de_venta": 2, "monto_contado": 100})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = request(t, r, http.MethodGet, "/v1/caja/"+id+"/reporte", ajeno, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w, _ = request(t, r, http.MethodGet, "/v1/caja/historial/"+id, ajeno, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = request(t, r, http.MethodGet, "/v1/caja/"+id+"/reporte", propio, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = request(t, r, http.MethodGet, "/v1/caja/historial/"+id, propio, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w, _ = request(t, r, http.MethodGet, "/v1/caja/historial/"+id, sup, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCaja_ReporteNoEncontrado(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})
	tok := token(t, middleware.RolCajero, nil)

	w, env := request(t, r, http.MethodGet, "/v1/caja/"+uuid.NewString()+"/reporte", tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "sesion_no_encontrada", env.Code)

	w, _ = request(t, r, http.MethodGet, "/v1/caja/no-es-uuid/reporte", tok, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = request(t, r, http.MethodGet, "/v1/caja/historial/"+uuid.NewString(), tok, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "historial_no_encontrado", env.Code)
}

func TestCaja_HistorialPermisosYFechas(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})
	sup := token(t, middleware.RolSupervisor, nil)

	w, _ := request(t, r, http.MethodGet, "/v1/caja/historial", token(t, middleware.RolCajero, nil), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, env := request(t, r, http.MethodGet, "/v1/caja/historial?desde=2026-03-01&hasta=2026-03-31", sup, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Data  []json.RawMessage `json:"data"`
		Total int64             `json:"total"`
		Page  int               `json:"page"`
		Limit int               `json:"limit"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, int64(0), list.Total)
	assert.Equal(t, 1, list.Page)
	assert.Equal(t, 20, list.Limit)

	w, env = request(t, r, http.MethodGet, "/v1/caja/historial?desde=01-03-2026", sup, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Fields, "desde")

	w, env = request(t, r, http.MethodGet, "/v1/caja/historial?desde=2026-03-10&hasta=2026-03-01", sup, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, env.Fields, "hasta")
}

func TestCaja_ExportarHistorial(t *testing.T) {
	r := setupRouter(t, caja.Reglas{})

	w, _ := request(t, r, http.MethodGet, "/v1/caja/historial/export", token(t, middleware.RolAdministrador, nil), nil)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "historial_caja_")
	// XLSX is a zip archive.
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("PK")))
}
