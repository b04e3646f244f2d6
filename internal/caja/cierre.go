package caja

import "github.com/shopspring/decimal"

// ── Closing summary ───────────────────────────────────────────────────────────

// EfectivoFisico is the physical-cash breakdown of a closing summary.
type EfectivoFisico struct {
	Apertura                     decimal.Decimal `json:"apertura"                        yaml:"apertura"`
	VentasEfectivo               decimal.Decimal `json:"ventas_efectivo"                 yaml:"ventas_efectivo"`
	PagosCuentaCorrienteEfectivo decimal.Decimal `json:"pagos_cuenta_corriente_efectivo" yaml:"pagos_cuenta_corriente_efectivo"`
	Depositos                    decimal.Decimal `json:"depositos"                       yaml:"depositos"`
	Gastos                       decimal.Decimal `json:"gastos"                          yaml:"gastos"`
	Retiros                      decimal.Decimal `json:"retiros"                         yaml:"retiros"`
	Cancelaciones                decimal.Decimal `json:"cancelaciones"                   yaml:"cancelaciones"`
	Esperado                     decimal.Decimal `json:"esperado"                        yaml:"esperado"`
}

// OtrosMedios groups the tenders that never reach the drawer.
type OtrosMedios struct {
	VentasTarjeta                     decimal.Decimal `json:"ventas_tarjeta"                       yaml:"ventas_tarjeta"`
	VentasTransferencia               decimal.Decimal `json:"ventas_transferencia"                 yaml:"ventas_transferencia"`
	PagosCuentaCorrienteTarjeta       decimal.Decimal `json:"pagos_cuenta_corriente_tarjeta"       yaml:"pagos_cuenta_corriente_tarjeta"`
	PagosCuentaCorrienteTransferencia decimal.Decimal `json:"pagos_cuenta_corriente_transferencia" yaml:"pagos_cuenta_corriente_transferencia"`
	Total                             decimal.Decimal `json:"total"                                yaml:"total"`
}

type TotalesCierre struct {
	TotalVentas               decimal.Decimal `json:"total_ventas"                 yaml:"total_ventas"`
	MontoTotalGeneral         decimal.Decimal `json:"monto_total_general"          yaml:"monto_total_general"`
	TotalPagosCuentaCorriente decimal.Decimal `json:"total_pagos_cuenta_corriente" yaml:"total_pagos_cuenta_corriente"`
	TotalCancelaciones        decimal.Decimal `json:"total_cancelaciones"          yaml:"total_cancelaciones"`
	EfectivoFisicoEsperado    decimal.Decimal `json:"efectivo_fisico_esperado"     yaml:"efectivo_fisico_esperado"`
}

type ResumenCierre struct {
	EfectivoFisico EfectivoFisico `json:"efectivo_fisico" yaml:"efectivo_fisico"`
	OtrosMedios    OtrosMedios    `json:"otros_medios"    yaml:"otros_medios"`
	Totales        TotalesCierre  `json:"totales"         yaml:"totales"`
}

// ResumirCierre builds the closing summary from a session and its aggregates.
// The opening float is taken from the session.
func ResumirCierre(sesion Sesion, ag Agregados) ResumenCierre {
	esperado := sesion.MontoInicial.
		Add(ag.VentasEfectivo).
		Add(ag.PagosCuentaCorrienteEfectivo).
		Add(ag.Depositos).
		Sub(ag.Gastos).
		Sub(ag.Retiros).
		Sub(ag.Cancelaciones)

	otros := OtrosMedios{
		VentasTarjeta:                     ag.VentasTarjeta,
		VentasTransferencia:               ag.VentasTransferencia,
		PagosCuentaCorrienteTarjeta:       ag.PagosCuentaCorrienteTarjeta,
		PagosCuentaCorrienteTransferencia: ag.PagosCuentaCorrienteTransferencia,
	}
	otros.Total = otros.VentasTarjeta.
		Add(otros.VentasTransferencia).
		Add(otros.PagosCuentaCorrienteTarjeta).
		Add(otros.PagosCuentaCorrienteTransferencia)

	return ResumenCierre{
		EfectivoFisico: EfectivoFisico{
			Apertura:                     sesion.MontoInicial,
			VentasEfectivo:               ag.VentasEfectivo,
			PagosCuentaCorrienteEfectivo: ag.PagosCuentaCorrienteEfectivo,
			Depositos:                    ag.Depositos,
			Gastos:                       ag.Gastos,
			Retiros:                      ag.Retiros,
			Cancelaciones:                ag.Cancelaciones,
			Esperado:                     esperado,
		},
		OtrosMedios: otros,
		Totales: TotalesCierre{
			TotalVentas:               ag.TotalVentas(),
			MontoTotalGeneral:         ag.MontoTotalGeneral,
			TotalPagosCuentaCorriente: ag.TotalPagosCuentaCorriente(),
			TotalCancelaciones:        ag.Cancelaciones,
			EfectivoFisicoEsperado:    esperado,
		},
	}
}

// ── Reconciliation ────────────────────────────────────────────────────────────

// EstadoDiferencia: "balanceado" | "sobrante" | "faltante"
type EstadoDiferencia string

const (
	DiferenciaBalanceada EstadoDiferencia = "balanceado"
	DiferenciaSobrante   EstadoDiferencia = "sobrante"
	DiferenciaFaltante   EstadoDiferencia = "faltante"
)

// Severidad of a deviation: "normal" | "advertencia" | "critico"
type Severidad string

const (
	SeveridadNormal      Severidad = "normal"
	SeveridadAdvertencia Severidad = "advertencia"
	SeveridadCritica     Severidad = "critico"
)

// Conciliacion is the outcome of comparing the count against the ledger.
type Conciliacion struct {
	Esperado     decimal.Decimal  `json:"esperado"      yaml:"esperado"`
	Contado      decimal.Decimal  `json:"contado"       yaml:"contado"`
	Diferencia   decimal.Decimal  `json:"diferencia"    yaml:"diferencia"`
	Porcentaje   decimal.Decimal  `json:"porcentaje"    yaml:"porcentaje"`
	Estado       EstadoDiferencia `json:"estado"        yaml:"estado"`
	Severidad    Severidad        `json:"severidad"     yaml:"severidad"`
	ConteoFisico bool             `json:"conteo_fisico" yaml:"conteo_fisico"`
	Advertencias []Advertencia    `json:"advertencias"  yaml:"advertencias,omitempty"`
}

// Diferencia is counted − expected. Never corrected, reported verbatim.
func Diferencia(contado, esperado decimal.Decimal) decimal.Decimal {
	return contado.Sub(esperado)
}

// ClasificarDiferencia maps a difference to balanced/surplus/shortage.
func ClasificarDiferencia(d decimal.Decimal) EstadoDiferencia {
	switch d.Sign() {
	case 0:
		return DiferenciaBalanceada
	case 1:
		return DiferenciaSobrante
	default:
		return DiferenciaFaltante
	}
}

// ClasificarDesvio returns the severity of a deviation percentage.
// normal: |desvio| <= 1%, advertencia: <= 5%, critico: > 5%
func ClasificarDesvio(pct decimal.Decimal) Severidad {
	abs := pct.Abs()
	switch {
	case abs.LessThanOrEqual(decimal.NewFromInt(1)):
		return SeveridadNormal
	case abs.LessThanOrEqual(decimal.NewFromInt(5)):
		return SeveridadAdvertencia
	default:
		return SeveridadCritica
	}
}

// Conciliar compares a physical count with the expected cash. A nil count
// means the operator did not count: expected is taken as actual. Whether a
// count is mandatory is the caller's concern (Reglas.ValidarCierre).
// With nothing expected the percentage is 0.
func Conciliar(esperado decimal.Decimal, contado *decimal.Decimal) Conciliacion {
	c := Conciliacion{Esperado: esperado, Contado: esperado, Diferencia: decimal.Zero, Porcentaje: decimal.Zero}
	if contado != nil {
		c.Contado = *contado
		c.ConteoFisico = true
		c.Diferencia = Diferencia(*contado, esperado)
	}
	if !esperado.IsZero() {
		c.Porcentaje = c.Diferencia.Div(esperado.Abs()).Mul(decimal.NewFromInt(100)).Round(2)
	}
	c.Estado = ClasificarDiferencia(c.Diferencia)
	c.Severidad = ClasificarDesvio(c.Porcentaje)
	if c.Severidad == SeveridadCritica {
		c.Advertencias = append(c.Advertencias, Advertencia{
			Codigo:  AdvertenciaDiferenciaSignificativa,
			Mensaje: "el conteo físico difiere más de un 5% del efectivo esperado",
		})
	}
	return c
}
