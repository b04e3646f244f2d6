package caja

import (
	"errors"
	"fmt"
)

// ── Sentinel errors ───────────────────────────────────────────────────────────
// Use with errors.Is. Each one has a stable wire code (see Codigo).

var (
	ErrSesionYaAbierta       = errors.New("ya existe una sesión de caja abierta")
	ErrSesionNoAbierta       = errors.New("no hay sesión de caja abierta")
	ErrSesionNoEncontrada    = errors.New("sesión de caja no encontrada")
	ErrMovimientoSinSesion   = errors.New("movimiento rechazado: no hay sesión de caja abierta")
	ErrMontoInvalido         = errors.New("monto inválido")
	ErrTipoInvalido          = errors.New("tipo de movimiento inválido")
	ErrTipoSintetico         = errors.New("los movimientos de apertura y cierre los genera la caja")
	ErrMetodoInvalido        = errors.New("método de pago inválido")
	ErrPagosInvalidos        = errors.New("los pagos no cuadran con el monto del movimiento")
	ErrCobroInvalido         = errors.New("cobro de cuenta corriente inválido")
	ErrConteoRequerido       = errors.New("se requiere el conteo físico para cerrar la caja")
	ErrEfectivoNegativo      = errors.New("el movimiento dejaría el efectivo de la caja en negativo")
	ErrReferenciaDuplicada   = errors.New("la referencia del cobro ya fue registrada")
	ErrOperacionEnCurso      = errors.New("ya hay una operación de caja en curso")
	ErrServidorNoDisponible  = errors.New("servidor de caja no disponible")
	ErrRespuestaInvalida     = errors.New("respuesta inválida del servidor de caja")
	ErrHistorialNoEncontrado = errors.New("sesión archivada no encontrada")
)

// ── Typed errors ──────────────────────────────────────────────────────────────

// ValidationError: the request is malformed. Nothing was changed.
type ValidationError struct {
	Campo string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Campo == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %s", e.Campo, e.Err.Error())
}

func (e *ValidationError) Unwrap() error { return e.Err }

// ConflictError: the request clashes with the current session state.
// Nothing was changed; the caller should refresh status.
type ConflictError struct {
	Err error
}

func (e *ConflictError) Error() string { return e.Err.Error() }
func (e *ConflictError) Unwrap() error { return e.Err }

// TransportError: the remote call failed (network, timeout, 5xx).
// No local state was committed.
type TransportError struct {
	Op        string
	Status    int
	Retryable bool
	Err       error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err.Error())
}

func (e *TransportError) Unwrap() error { return e.Err }

func invalido(campo string, err error) error { return &ValidationError{Campo: campo, Err: err} }

// Conflicto wraps err as a ConflictError.
func Conflicto(err error) error { return &ConflictError{Err: err} }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is (or wraps) a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

// IsTransport reports whether err is (or wraps) a TransportError.
func IsTransport(err error) bool {
	var t *TransportError
	return errors.As(err, &t)
}

// ── Wire codes ────────────────────────────────────────────────────────────────

var codigos = []struct {
	codigo string
	err    error
}{
	{"sesion_ya_abierta", ErrSesionYaAbierta},
	{"sesion_no_abierta", ErrSesionNoAbierta},
	{"sesion_no_encontrada", ErrSesionNoEncontrada},
	{"movimiento_sin_sesion", ErrMovimientoSinSesion},
	{"monto_invalido", ErrMontoInvalido},
	{"tipo_invalido", ErrTipoInvalido},
	{"tipo_sintetico", ErrTipoSintetico},
	{"metodo_invalido", ErrMetodoInvalido},
	{"pagos_invalidos", ErrPagosInvalidos},
	{"cobro_invalido", ErrCobroInvalido},
	{"conteo_requerido", ErrConteoRequerido},
	{"efectivo_negativo", ErrEfectivoNegativo},
	{"referencia_duplicada", ErrReferenciaDuplicada},
	{"operacion_en_curso", ErrOperacionEnCurso},
	{"historial_no_encontrado", ErrHistorialNoEncontrado},
}

// Codigo returns the stable wire code of the sentinel wrapped by err, or "".
func Codigo(err error) string {
	for _, c := range codigos {
		if errors.Is(err, c.err) {
			return c.codigo
		}
	}
	return ""
}

// ErrorDesdeCodigo rebuilds the typed error the server reported.
// Unknown codes fall back to a plain error carrying msg.
func ErrorDesdeCodigo(codigo, msg string) error {
	for _, c := range codigos {
		if c.codigo != codigo {
			continue
		}
		switch c.err {
		case ErrSesionYaAbierta, ErrSesionNoAbierta, ErrMovimientoSinSesion,
			ErrReferenciaDuplicada, ErrOperacionEnCurso:
			return Conflicto(c.err)
		case ErrSesionNoEncontrada, ErrHistorialNoEncontrado:
			return c.err
		default:
			return invalido("", c.err)
		}
	}
	if msg == "" {
		msg = "error desconocido"
	}
	return errors.New(msg)
}
