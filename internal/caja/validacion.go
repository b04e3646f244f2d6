package caja

import "github.com/shopspring/decimal"

// limiteMonto bounds every stored amount: columns are decimal(12,2).
var limiteMonto = decimal.New(1, 10)

// Representable reports whether d fits a decimal(12,2) column unchanged:
// at most two fractional digits and magnitude below 10^10.
func Representable(d decimal.Decimal) bool {
	return d.Equal(d.Round(2)) && d.Abs().LessThan(limiteMonto)
}

// ValidarApertura checks the opening float. Zero or negative is rejected;
// range limits are advisories (see Reglas.AdvertenciasApertura).
func ValidarApertura(monto decimal.Decimal) error {
	if !monto.IsPositive() || !Representable(monto) {
		return invalido("monto_inicial", ErrMontoInvalido)
	}
	return nil
}

// ValidarMovimiento checks a caller-supplied movement before it touches the
// ledger. Synthetic kinds are rejected: only the lifecycle manager writes them.
func ValidarMovimiento(n NuevoMovimiento) error {
	if !n.Tipo.Valido() {
		return invalido("tipo", ErrTipoInvalido)
	}
	if n.Tipo.Sintetico() {
		return invalido("tipo", ErrTipoSintetico)
	}

	switch {
	case n.Tipo.Egreso():
		if n.Monto.IsZero() {
			return invalido("monto", ErrMontoInvalido)
		}
	default:
		if !n.Monto.IsPositive() {
			return invalido("monto", ErrMontoInvalido)
		}
	}

	if !Representable(n.Monto) {
		return invalido("monto", ErrMontoInvalido)
	}

	if n.EsCobroCuentaCorriente && n.Tipo != MovimientoDeposito {
		return invalido("es_cobro_cuenta_corriente", ErrCobroInvalido)
	}

	if n.MetodoPago != nil && !n.MetodoPago.Valido() {
		return invalido("metodo_pago", ErrMetodoInvalido)
	}

	switch n.Tipo {
	case MovimientoVenta:
		if n.MetodoPago == nil {
			return invalido("metodo_pago", ErrMetodoInvalido)
		}
	case MovimientoDeposito:
		if n.EsCobroCuentaCorriente {
			if n.MetodoPago == nil || *n.MetodoPago == MetodoCuentaCorriente {
				return invalido("metodo_pago", ErrCobroInvalido)
			}
		} else if n.MetodoPago != nil && *n.MetodoPago == MetodoMultiple {
			return invalido("metodo_pago", ErrMetodoInvalido)
		}
	default:
		if n.MetodoPago != nil && *n.MetodoPago == MetodoMultiple {
			return invalido("metodo_pago", ErrMetodoInvalido)
		}
	}

	return validarPagos(n)
}

func validarPagos(n NuevoMovimiento) error {
	multiple := n.MetodoPago != nil && *n.MetodoPago == MetodoMultiple
	if !multiple {
		if len(n.Pagos) > 0 {
			return invalido("pagos", ErrPagosInvalidos)
		}
		return nil
	}
	if len(n.Pagos) == 0 {
		return invalido("pagos", ErrPagosInvalidos)
	}

	suma := decimal.Zero
	for _, p := range n.Pagos {
		switch p.Metodo {
		case MetodoEfectivo, MetodoTarjetaCredito, MetodoTransferencia:
		case MetodoCuentaCorriente:
			// A receivable cannot settle a receivable.
			if n.EsCobroCuentaCorriente {
				return invalido("pagos", ErrCobroInvalido)
			}
		default:
			return invalido("pagos", ErrMetodoInvalido)
		}
		if !p.Monto.IsPositive() || !Representable(p.Monto) {
			return invalido("pagos", ErrMontoInvalido)
		}
		suma = suma.Add(p.Monto)
	}
	if !suma.Equal(n.Monto.Abs()) {
		return invalido("pagos", ErrPagosInvalidos)
	}
	return nil
}
