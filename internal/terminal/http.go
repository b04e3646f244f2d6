package terminal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"
	"blendcaja/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// envelope mirrors apierror.Envelope with a raw payload.
type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Fields  map[string]string `json:"fields"`
}

// HTTPTransport talks to the caja server over its JSON API. Calls go through a
// circuit breaker that only counts transport failures.
type HTTPTransport struct {
	baseURL    string
	token      string
	httpClient *http.Client
	cb         *infra.CircuitBreaker
}

func NewHTTPTransport(baseURL, token string, timeout time.Duration) *HTTPTransport {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	cbCfg := infra.DefaultCBConfig()
	cbCfg.IsFailure = caja.IsTransport
	cbCfg.OnStateChange = func(de, a infra.CBState) {
		log.Warn().Str("from", de.String()).Str("to", a.String()).Str("server", baseURL).Msg("terminal: circuit breaker")
	}
	return &HTTPTransport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: timeout},
		cb:         infra.NewCircuitBreaker(cbCfg),
	}
}

// Breaker exposes the breaker state (for the CLI).
func (t *HTTPTransport) Breaker() infra.CBState { return t.cb.State() }

func (t *HTTPTransport) Estado(ctx context.Context, puntoDeVenta int) (*dto.EstadoCajaResponse, error) {
	q := url.Values{}
	if puntoDeVenta > 0 {
		q.Set("punto_de_venta", strconv.Itoa(puntoDeVenta))
	}
	var out dto.EstadoCajaResponse
	if err := t.do(ctx, "estado", http.MethodGet, "/v1/caja/estado", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) Abrir(ctx context.Context, req dto.AbrirCajaRequest) (*dto.AperturaResponse, error) {
	var out dto.AperturaResponse
	if err := t.do(ctx, "abrir", http.MethodPost, "/v1/caja/abrir", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) RegistrarMovimiento(ctx context.Context, req dto.MovimientoRequest) (*dto.MovimientoResponse, error) {
	var out dto.MovimientoResponse
	if err := t.do(ctx, "movimiento", http.MethodPost, "/v1/caja/movimientos", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) Cerrar(ctx context.Context, req dto.CerrarCajaRequest) (*dto.CierreResponse, error) {
	var out dto.CierreResponse
	if err := t.do(ctx, "cerrar", http.MethodPost, "/v1/caja/cerrar", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) Reporte(ctx context.Context, sesionID uuid.UUID) (*dto.ReporteResponse, error) {
	var out dto.ReporteResponse
	if err := t.do(ctx, "reporte", http.MethodGet, "/v1/caja/"+sesionID.String()+"/reporte", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) Historial(ctx context.Context, filter dto.HistorialFilter) (*dto.HistorialListResponse, error) {
	var out dto.HistorialListResponse
	if err := t.do(ctx, "historial", http.MethodGet, "/v1/caja/historial", historialQuery(filter), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *HTTPTransport) DetalleHistorial(ctx context.Context, sesionID uuid.UUID) (*dto.HistorialDetalleResponse, error) {
	var out dto.HistorialDetalleResponse
	if err := t.do(ctx, "historial", http.MethodGet, "/v1/caja/historial/"+sesionID.String(), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ExportarHistorial streams the XLSX workbook into w.
func (t *HTTPTransport) ExportarHistorial(ctx context.Context, filter dto.HistorialFilter, w io.Writer) error {
	return t.execute("exportar", func() error {
		resp, err := t.send(ctx, "exportar", http.MethodGet, "/v1/caja/historial/export", historialQuery(filter), nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return decodeError("exportar", resp)
		}
		if _, err := io.Copy(w, resp.Body); err != nil {
			return &caja.TransportError{Op: "exportar", Retryable: true, Err: err}
		}
		return nil
	})
}

// ── plumbing ──────────────────────────────────────────────────────────────────

func (t *HTTPTransport) do(ctx context.Context, op, method, path string, q url.Values, body, out interface{}) error {
	return t.execute(op, func() error {
		resp, err := t.send(ctx, op, method, path, q, body)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return decodeError(op, resp)
		}
		var env envelope
		if err := json.NewDecoder(resp.Body).Decode(&env); err != nil || !env.Success {
			return &caja.TransportError{Op: op, Status: resp.StatusCode, Err: caja.ErrRespuestaInvalida}
		}
		if out == nil {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &caja.TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("%w: %v", caja.ErrRespuestaInvalida, err)}
		}
		return nil
	})
}

func (t *HTTPTransport) execute(op string, fn func() error) error {
	err := t.cb.Execute(fn)
	if errors.Is(err, infra.ErrCircuitOpen) {
		return &caja.TransportError{Op: op, Retryable: true, Err: fmt.Errorf("%w (%w)", caja.ErrServidorNoDisponible, err)}
	}
	if caja.IsTransport(err) {
		log.Warn().Err(err).Str("op", op).Msg("terminal: transport failure")
	}
	return err
}

func (t *HTTPTransport) send(ctx context.Context, op, method, path string, q url.Values, body interface{}) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	u := t.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if t.token != "" {
		req.Header.Set("Authorization", "Bearer "+t.token)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &caja.TransportError{Op: op, Retryable: true, Err: fmt.Errorf("%w: %v", caja.ErrServidorNoDisponible, err)}
	}
	return resp, nil
}

// decodeError rebuilds the typed error from an error envelope. Codes the
// till does not know still keep their class from the status code.
func decodeError(op string, resp *http.Response) error {
	var env envelope
	_ = json.NewDecoder(resp.Body).Decode(&env)
	msg := env.Message
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}

	switch {
	case resp.StatusCode >= 500:
		return &caja.TransportError{Op: op, Status: resp.StatusCode, Retryable: true, Err: fmt.Errorf("%w: %s", caja.ErrServidorNoDisponible, msg)}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden ||
		resp.StatusCode == http.StatusTooManyRequests:
		return &caja.TransportError{Op: op, Status: resp.StatusCode, Retryable: resp.StatusCode == http.StatusTooManyRequests, Err: errors.New(msg)}
	}

	err := caja.ErrorDesdeCodigo(env.Code, msg)
	if caja.IsValidation(err) || caja.IsConflict(err) || caja.Codigo(err) != "" {
		return err
	}
	switch resp.StatusCode {
	case http.StatusConflict:
		return caja.Conflicto(err)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		campo := ""
		for f := range env.Fields {
			campo = f
			break
		}
		return &caja.ValidationError{Campo: campo, Err: err}
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", caja.ErrSesionNoEncontrada, msg)
	}
	return &caja.TransportError{Op: op, Status: resp.StatusCode, Err: err}
}

func historialQuery(f dto.HistorialFilter) url.Values {
	q := url.Values{}
	if f.Desde != nil {
		q.Set("desde", f.Desde.Format("2006-01-02"))
	}
	if f.Hasta != nil {
		q.Set("hasta", f.Hasta.Format("2006-01-02"))
	}
	if f.PuntoDeVenta > 0 {
		q.Set("punto_de_venta", strconv.Itoa(f.PuntoDeVenta))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	return q
}
