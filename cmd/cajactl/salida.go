package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// imprimir renders v in the configured output format; table uses render.
func imprimir(w io.Writer, v interface{}, render func(*tabla)) error {
	return imprimirComo(w, viper.GetString("output"), v, render)
}

func imprimirComo(w io.Writer, formato string, v interface{}, render func(*tabla)) error {
	switch formato {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		t := &tabla{tw: tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)}
		render(t)
		return t.tw.Flush()
	}
}

type tabla struct {
	tw *tabwriter.Writer
}

func (t *tabla) fila(label string, v interface{}) {
	fmt.Fprintf(t.tw, "%s\t%v\n", label, v)
}

func (t *tabla) advertencias(as []caja.Advertencia) {
	for _, a := range as {
		fmt.Fprintf(t.tw, "! %s\t%s\n", a.Codigo, a.Mensaje)
	}
}

func (t *tabla) movimientos(ms []caja.Movimiento) {
	if len(ms) == 0 {
		return
	}
	fmt.Fprintln(t.tw, "")
	fmt.Fprintln(t.tw, "#\tHORA\tTIPO\tMEDIO\tMONTO\tDESCRIPCIÓN")
	for _, m := range ms {
		metodo := "-"
		if m.MetodoPago != nil {
			metodo = string(*m.MetodoPago)
		}
		fmt.Fprintf(t.tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			m.Orden, m.CreatedAt.Local().Format("15:04:05"), m.Tipo, metodo, m.Monto.StringFixed(2), m.Descripcion)
	}
}

func tablaAgregados(t *tabla, ag *caja.Agregados) {
	if ag == nil {
		return
	}
	t.fila("Efectivo en caja", ag.MontoActual.StringFixed(2))
	t.fila("Ventas efectivo", ag.VentasEfectivo.StringFixed(2))
	t.fila("Ventas tarjeta", ag.VentasTarjeta.StringFixed(2))
	t.fila("Ventas transferencia", ag.VentasTransferencia.StringFixed(2))
	t.fila("Cobros cta cte", ag.TotalPagosCuentaCorriente().StringFixed(2))
	t.fila("Depósitos", ag.Depositos.StringFixed(2))
	t.fila("Gastos", ag.Gastos.StringFixed(2))
	t.fila("Retiros", ag.Retiros.StringFixed(2))
	t.fila("Cancelaciones", ag.Cancelaciones.StringFixed(2))
	t.fila("Total general", ag.MontoTotalGeneral.StringFixed(2))
}

func tablaEstado(t *tabla, est *dto.EstadoCajaResponse) {
	t.fila("Punto de venta", est.PuntoDeVenta)
	if est.Sesion == nil {
		t.fila("Estado", "cerrada")
		return
	}
	t.fila("Sesión", est.Sesion.ID.String())
	t.fila("Abierta", est.Sesion.OpenedAt.Local().Format("02/01/2006 15:04"))
	tablaAgregados(t, est.Agregados)
	if est.CierreAutomaticoPendiente {
		t.fila("Cierre automático", "pendiente")
	}
	t.advertencias(est.Advertencias)
	t.movimientos(est.Movimientos)
}

func tablaHistorial(t *tabla, resp *dto.HistorialListResponse) {
	fmt.Fprintln(t.tw, "SESIÓN\tPDV\tCIERRE\tESPERADO\tCONTADO\tDIFERENCIA\tSEVERIDAD")
	for _, it := range resp.Data {
		fmt.Fprintf(t.tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			it.SesionCajaID, it.PuntoDeVenta, it.ClosedAt.Local().Format("02/01/2006 15:04"),
			it.MontoEsperado.StringFixed(2), it.MontoContado.StringFixed(2),
			it.Diferencia.StringFixed(2), it.Severidad)
	}
	fmt.Fprintf(t.tw, "\n%d sesiones (página %d)\tneto del período %s\n", resp.Total, resp.Page, resp.Ganancias.Neto.StringFixed(2))
}
