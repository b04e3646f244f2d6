package caja

import "github.com/shopspring/decimal"

// Ganancias is the earnings breakdown of one or more closed sessions.
type Ganancias struct {
	Efectivo                  decimal.Decimal `json:"efectivo"                     yaml:"efectivo"`
	Tarjeta                   decimal.Decimal `json:"tarjeta"                      yaml:"tarjeta"`
	Transferencia             decimal.Decimal `json:"transferencia"                yaml:"transferencia"`
	TotalVentas               decimal.Decimal `json:"total_ventas"                 yaml:"total_ventas"`
	TotalPagosCuentaCorriente decimal.Decimal `json:"total_pagos_cuenta_corriente" yaml:"total_pagos_cuenta_corriente"`
	Depositos                 decimal.Decimal `json:"depositos"                    yaml:"depositos"`
	Gastos                    decimal.Decimal `json:"gastos"                       yaml:"gastos"`
	Retiros                   decimal.Decimal `json:"retiros"                      yaml:"retiros"`
	Cancelaciones             decimal.Decimal `json:"cancelaciones"                yaml:"cancelaciones"`
	MontoTotalGeneral         decimal.Decimal `json:"monto_total_general"          yaml:"monto_total_general"`
	Neto                      decimal.Decimal `json:"neto"                         yaml:"neto"`
	Sesiones                  int             `json:"sesiones"                     yaml:"sesiones"`
}

// CalcularGanancias derives the earnings of a single session.
// Neto = total general − gastos − cancelaciones.
func CalcularGanancias(ag Agregados) Ganancias {
	return Ganancias{
		Efectivo:                  ag.VentasEfectivo.Add(ag.PagosCuentaCorrienteEfectivo),
		Tarjeta:                   ag.VentasTarjeta.Add(ag.PagosCuentaCorrienteTarjeta),
		Transferencia:             ag.VentasTransferencia.Add(ag.PagosCuentaCorrienteTransferencia),
		TotalVentas:               ag.TotalVentas(),
		TotalPagosCuentaCorriente: ag.TotalPagosCuentaCorriente(),
		Depositos:                 ag.Depositos,
		Gastos:                    ag.Gastos,
		Retiros:                   ag.Retiros,
		Cancelaciones:             ag.Cancelaciones,
		MontoTotalGeneral:         ag.MontoTotalGeneral,
		Neto:                      ag.MontoTotalGeneral.Sub(ag.Gastos).Sub(ag.Cancelaciones),
		Sesiones:                  1,
	}
}

// SumarGanancias folds the breakdowns of a period into one.
func SumarGanancias(gs ...Ganancias) Ganancias {
	total := Ganancias{
		Efectivo:                  decimal.Zero,
		Tarjeta:                   decimal.Zero,
		Transferencia:             decimal.Zero,
		TotalVentas:               decimal.Zero,
		TotalPagosCuentaCorriente: decimal.Zero,
		Depositos:                 decimal.Zero,
		Gastos:                    decimal.Zero,
		Retiros:                   decimal.Zero,
		Cancelaciones:             decimal.Zero,
		MontoTotalGeneral:         decimal.Zero,
		Neto:                      decimal.Zero,
	}
	for _, g := range gs {
		total.Efectivo = total.Efectivo.Add(g.Efectivo)
		total.Tarjeta = total.Tarjeta.Add(g.Tarjeta)
		total.Transferencia = total.Transferencia.Add(g.Transferencia)
		total.TotalVentas = total.TotalVentas.Add(g.TotalVentas)
		total.TotalPagosCuentaCorriente = total.TotalPagosCuentaCorriente.Add(g.TotalPagosCuentaCorriente)
		total.Depositos = total.Depositos.Add(g.Depositos)
		total.Gastos = total.Gastos.Add(g.Gastos)
		total.Retiros = total.Retiros.Add(g.Retiros)
		total.Cancelaciones = total.Cancelaciones.Add(g.Cancelaciones)
		total.MontoTotalGeneral = total.MontoTotalGeneral.Add(g.MontoTotalGeneral)
		total.Neto = total.Neto.Add(g.Neto)
		total.Sesiones += g.Sesiones
	}
	return total
}
