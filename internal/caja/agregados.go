package caja

import "github.com/shopspring/decimal"

// Agregados are the running totals of a session. They are always derived from
// the movement log and never stored on their own, except frozen inside an
// archived session.
type Agregados struct {
	MontoInicial                      decimal.Decimal `json:"monto_inicial"                         yaml:"monto_inicial"`
	VentasEfectivo                    decimal.Decimal `json:"ventas_efectivo"                       yaml:"ventas_efectivo"`
	VentasTarjeta                     decimal.Decimal `json:"ventas_tarjeta"                        yaml:"ventas_tarjeta"`
	VentasTransferencia               decimal.Decimal `json:"ventas_transferencia"                  yaml:"ventas_transferencia"`
	Depositos                         decimal.Decimal `json:"depositos"                             yaml:"depositos"`
	PagosCuentaCorrienteEfectivo      decimal.Decimal `json:"pagos_cuenta_corriente_efectivo"       yaml:"pagos_cuenta_corriente_efectivo"`
	PagosCuentaCorrienteTarjeta       decimal.Decimal `json:"pagos_cuenta_corriente_tarjeta"        yaml:"pagos_cuenta_corriente_tarjeta"`
	PagosCuentaCorrienteTransferencia decimal.Decimal `json:"pagos_cuenta_corriente_transferencia"  yaml:"pagos_cuenta_corriente_transferencia"`
	Gastos                            decimal.Decimal `json:"gastos"                                yaml:"gastos"`
	Retiros                           decimal.Decimal `json:"retiros"                               yaml:"retiros"`
	Cancelaciones                     decimal.Decimal `json:"cancelaciones"                         yaml:"cancelaciones"`
	MontoActual                       decimal.Decimal `json:"monto_actual"                          yaml:"monto_actual"`
	MontoTotalGeneral                 decimal.Decimal `json:"monto_total_general"                   yaml:"monto_total_general"`
	CantidadVentas                    int             `json:"cantidad_ventas"                       yaml:"cantidad_ventas"`
}

// Agregar maps a movement log to its aggregates. It is a pure sum: the order
// of movs never changes the result. Outflows are summed by magnitude, so the
// sign a caller used for a withdrawal/expense/cancellation does not matter.
func Agregar(montoInicial decimal.Decimal, movs []Movimiento) Agregados {
	ag := Agregados{
		MontoInicial:                      montoInicial,
		VentasEfectivo:                    decimal.Zero,
		VentasTarjeta:                     decimal.Zero,
		VentasTransferencia:               decimal.Zero,
		Depositos:                         decimal.Zero,
		PagosCuentaCorrienteEfectivo:      decimal.Zero,
		PagosCuentaCorrienteTarjeta:       decimal.Zero,
		PagosCuentaCorrienteTransferencia: decimal.Zero,
		Gastos:                            decimal.Zero,
		Retiros:                           decimal.Zero,
		Cancelaciones:                     decimal.Zero,
	}

	for _, m := range movs {
		switch m.Tipo {
		case MovimientoVenta:
			ag.CantidadVentas++
			for _, t := range m.Tramos() {
				switch t.Metodo {
				case MetodoEfectivo:
					ag.VentasEfectivo = ag.VentasEfectivo.Add(t.Monto)
				case MetodoTarjetaCredito:
					ag.VentasTarjeta = ag.VentasTarjeta.Add(t.Monto)
				case MetodoTransferencia:
					ag.VentasTransferencia = ag.VentasTransferencia.Add(t.Monto)
				}
				// cuenta_corriente: receivable, owned by the AR subsystem
			}
		case MovimientoDeposito:
			if !m.EsCobroCuentaCorriente {
				ag.Depositos = ag.Depositos.Add(m.Monto.Abs())
				continue
			}
			for _, t := range m.Tramos() {
				switch t.Metodo {
				case MetodoEfectivo:
					ag.PagosCuentaCorrienteEfectivo = ag.PagosCuentaCorrienteEfectivo.Add(t.Monto)
				case MetodoTarjetaCredito:
					ag.PagosCuentaCorrienteTarjeta = ag.PagosCuentaCorrienteTarjeta.Add(t.Monto)
				case MetodoTransferencia:
					ag.PagosCuentaCorrienteTransferencia = ag.PagosCuentaCorrienteTransferencia.Add(t.Monto)
				}
			}
		case MovimientoRetiro:
			ag.Retiros = ag.Retiros.Add(m.Monto.Abs())
		case MovimientoGasto:
			ag.Gastos = ag.Gastos.Add(m.Monto.Abs())
		case MovimientoCancelacion:
			ag.Cancelaciones = ag.Cancelaciones.Add(m.Monto.Abs())
		}
	}

	ag.MontoActual = montoInicial.
		Add(ag.VentasEfectivo).
		Add(ag.Depositos).
		Add(ag.PagosCuentaCorrienteEfectivo).
		Sub(ag.Gastos).
		Sub(ag.Retiros).
		Sub(ag.Cancelaciones)

	ag.MontoTotalGeneral = ag.VentasEfectivo.
		Add(ag.VentasTarjeta).
		Add(ag.VentasTransferencia).
		Add(ag.PagosCuentaCorrienteEfectivo).
		Add(ag.PagosCuentaCorrienteTarjeta).
		Add(ag.PagosCuentaCorrienteTransferencia)

	return ag
}

// TotalVentas is the sum of realized sales across every tender.
func (a Agregados) TotalVentas() decimal.Decimal {
	return a.VentasEfectivo.Add(a.VentasTarjeta).Add(a.VentasTransferencia)
}

// TotalPagosCuentaCorriente is the sum of AR collections across every tender.
func (a Agregados) TotalPagosCuentaCorriente() decimal.Decimal {
	return a.PagosCuentaCorrienteEfectivo.
		Add(a.PagosCuentaCorrienteTarjeta).
		Add(a.PagosCuentaCorrienteTransferencia)
}

// AfectaEfectivo reports whether m changes the physical count in the drawer.
func AfectaEfectivo(m Movimiento) bool {
	switch m.Tipo {
	case MovimientoRetiro, MovimientoGasto, MovimientoCancelacion:
		return true
	case MovimientoDeposito:
		if !m.EsCobroCuentaCorriente {
			return true
		}
	case MovimientoVenta:
	default:
		return false
	}
	for _, t := range m.Tramos() {
		if t.Metodo == MetodoEfectivo {
			return true
		}
	}
	return false
}
