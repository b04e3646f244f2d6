package caja

import "github.com/shopspring/decimal"

// EstadoCobros classifies the AR collections of a session.
type EstadoCobros string

const (
	CobrosNinguno      EstadoCobros = "ninguno"
	CobrosSoloEfectivo EstadoCobros = "solo_efectivo"
	CobrosSoloOtros    EstadoCobros = "solo_otros"
	CobrosMixto        EstadoCobros = "mixto"
)

// AfectacionEfectivo: "si" | "no" | "parcial"
type AfectacionEfectivo string

const (
	AfectaSi      AfectacionEfectivo = "si"
	AfectaNo      AfectacionEfectivo = "no"
	AfectaParcial AfectacionEfectivo = "parcial"
)

// DetalleCuentaCorriente tells the operator how much of the AR collections
// actually landed in the drawer.
type DetalleCuentaCorriente struct {
	Estado         EstadoCobros       `json:"estado"          yaml:"estado"`
	AfectaEfectivo AfectacionEfectivo `json:"afecta_efectivo" yaml:"afecta_efectivo"`
	Efectivo       decimal.Decimal    `json:"efectivo"        yaml:"efectivo"`
	Tarjeta        decimal.Decimal    `json:"tarjeta"         yaml:"tarjeta"`
	Transferencia  decimal.Decimal    `json:"transferencia"   yaml:"transferencia"`
	Total          decimal.Decimal    `json:"total"           yaml:"total"`
	Advertencia    *Advertencia       `json:"advertencia"     yaml:"advertencia,omitempty"`
}

// DetallarPagosCuentaCorriente classifies the AR collections in ag.
func DetallarPagosCuentaCorriente(ag Agregados) DetalleCuentaCorriente {
	d := DetalleCuentaCorriente{
		Efectivo:      ag.PagosCuentaCorrienteEfectivo,
		Tarjeta:       ag.PagosCuentaCorrienteTarjeta,
		Transferencia: ag.PagosCuentaCorrienteTransferencia,
		Total:         ag.TotalPagosCuentaCorriente(),
	}

	efectivo := ag.PagosCuentaCorrienteEfectivo.IsPositive()
	otros := ag.PagosCuentaCorrienteTarjeta.IsPositive() || ag.PagosCuentaCorrienteTransferencia.IsPositive()

	switch {
	case efectivo && otros:
		d.Estado = CobrosMixto
		d.AfectaEfectivo = AfectaParcial
		d.Advertencia = &Advertencia{
			Codigo:  AdvertenciaCobroMixto,
			Mensaje: "solo la parte en efectivo de los cobros de cuenta corriente está en la caja",
		}
	case efectivo:
		d.Estado = CobrosSoloEfectivo
		d.AfectaEfectivo = AfectaSi
	case otros:
		d.Estado = CobrosSoloOtros
		d.AfectaEfectivo = AfectaNo
	default:
		d.Estado = CobrosNinguno
		d.AfectaEfectivo = AfectaNo
	}
	return d
}
