package caja

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Advertencia is a non-blocking advisory attached to a response.
type Advertencia struct {
	Codigo  string `json:"codigo"  yaml:"codigo"`
	Mensaje string `json:"mensaje" yaml:"mensaje"`
}

const (
	AdvertenciaMontoFueraDeRango       = "monto_fuera_de_rango"
	AdvertenciaDiferenciaSignificativa = "diferencia_significativa"
	AdvertenciaCobroMixto              = "cobro_cuenta_corriente_mixto"
	AdvertenciaCierreAutomatico        = "cierre_automatico_pendiente"
)

// Reglas is the read-only till configuration. Zero limits disable the
// range advisory; an empty HoraCierreAutomatico disables the auto-close prompt.
type Reglas struct {
	MontoMinimo              decimal.Decimal
	MontoMaximo              decimal.Decimal
	HoraCierreAutomatico     string // HH:MM, local time
	RequiereConteo           bool
	PermitirEfectivoNegativo bool
}

// AdvertenciasApertura returns the advisories for an opening float.
// Amounts exactly on a limit are accepted silently.
func (r Reglas) AdvertenciasApertura(monto decimal.Decimal) []Advertencia {
	var out []Advertencia
	if r.MontoMinimo.IsPositive() && monto.LessThan(r.MontoMinimo) {
		out = append(out, Advertencia{
			Codigo:  AdvertenciaMontoFueraDeRango,
			Mensaje: fmt.Sprintf("el monto inicial es menor al mínimo configurado (%s)", r.MontoMinimo.StringFixed(2)),
		})
	}
	if r.MontoMaximo.IsPositive() && monto.GreaterThan(r.MontoMaximo) {
		out = append(out, Advertencia{
			Codigo:  AdvertenciaMontoFueraDeRango,
			Mensaje: fmt.Sprintf("el monto inicial supera el máximo configurado (%s)", r.MontoMaximo.StringFixed(2)),
		})
	}
	return out
}

// ValidarCierre rejects a close without physical count when one is required.
func (r Reglas) ValidarCierre(contado *decimal.Decimal) error {
	if contado == nil && r.RequiereConteo {
		return invalido("monto_contado", ErrConteoRequerido)
	}
	if contado != nil && (contado.IsNegative() || !Representable(*contado)) {
		return invalido("monto_contado", ErrMontoInvalido)
	}
	return nil
}

// VerificarEfectivo rejects an outflow that would leave the drawer below zero,
// unless negative cash is allowed. ag are the aggregates before the movement.
func (r Reglas) VerificarEfectivo(ag Agregados, n NuevoMovimiento) error {
	if r.PermitirEfectivoNegativo || !n.Tipo.Egreso() {
		return nil
	}
	if ag.MontoActual.Sub(n.Monto.Abs()).IsNegative() {
		return invalido("monto", ErrEfectivoNegativo)
	}
	return nil
}

// CierreAutomaticoPendiente reports whether the configured auto-close time has
// passed for a session opened at abierta. It only prompts the operator.
func (r Reglas) CierreAutomaticoPendiente(abierta, now time.Time) bool {
	if r.HoraCierreAutomatico == "" {
		return false
	}
	hm, err := time.Parse("15:04", r.HoraCierreAutomatico)
	if err != nil {
		return false
	}
	abierta = abierta.In(now.Location())
	limite := time.Date(abierta.Year(), abierta.Month(), abierta.Day(), hm.Hour(), hm.Minute(), 0, 0, now.Location())
	if !limite.After(abierta) {
		// Opened after the cut-off: the next one applies.
		limite = limite.AddDate(0, 0, 1)
	}
	return !now.Before(limite)
}

// AdvertenciaCierre returns the auto-close advisory, or nil.
func (r Reglas) AdvertenciaCierre(abierta, now time.Time) *Advertencia {
	if !r.CierreAutomaticoPendiente(abierta, now) {
		return nil
	}
	return &Advertencia{
		Codigo:  AdvertenciaCierreAutomatico,
		Mensaje: fmt.Sprintf("pasó la hora de cierre configurada (%s): cierre la caja", r.HoraCierreAutomatico),
	}
}
