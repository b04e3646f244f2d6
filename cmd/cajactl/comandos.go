package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// ── estado ────────────────────────────────────────────────────────────────────

var estadoCmd = &cobra.Command{
	Use:   "estado",
	Short: "Muestra la sesión abierta y sus totales",
	RunE: func(cmd *cobra.Command, args []string) error {
		est, err := terminalCaja.Estado(cmd.Context())
		if err != nil {
			return err
		}
		return imprimir(cmd.OutOrStdout(), est, func(t *tabla) { tablaEstado(t, est) })
	},
}

// ── abrir ─────────────────────────────────────────────────────────────────────

var abrirCmd = &cobra.Command{
	Use:   "abrir",
	Short: "Abre la caja con un monto inicial",
	RunE: func(cmd *cobra.Command, args []string) error {
		monto, err := montoFlag(cmd, "monto")
		if err != nil {
			return err
		}
		resp, err := terminalCaja.Abrir(cmd.Context(), monto, textoFlag(cmd, "notas"))
		if err != nil {
			return err
		}
		return imprimir(cmd.OutOrStdout(), resp, func(t *tabla) {
			t.fila("Sesión", resp.Sesion.ID.String())
			t.fila("Punto de venta", resp.Sesion.PuntoDeVenta)
			t.fila("Monto inicial", resp.Sesion.MontoInicial.StringFixed(2))
			t.advertencias(resp.Advertencias)
		})
	},
}

// ── venta / movimiento ────────────────────────────────────────────────────────

var ventaCmd = &cobra.Command{
	Use:   "venta",
	Short: "Registra una venta (con --pago para pago dividido)",
	RunE: func(cmd *cobra.Command, args []string) error {
		monto, err := montoFlag(cmd, "monto")
		if err != nil {
			return err
		}
		pagos, err := pagosFlag(cmd)
		if err != nil {
			return err
		}
		metodo, _ := cmd.Flags().GetString("metodo")
		desc, _ := cmd.Flags().GetString("descripcion")
		resp, err := terminalCaja.Venta(cmd.Context(), monto, caja.MetodoPago(metodo), desc, pagos...)
		if err != nil {
			return err
		}
		return imprimirMovimiento(cmd, resp)
	},
}

var movimientoCmd = &cobra.Command{
	Use:   "movimiento",
	Short: "Registra un depósito, retiro, gasto o cancelación",
	Long: `Registra un movimiento manual. --tipo: deposit, withdrawal, expense, cancellation
(sale también es aceptado). Con --cobro-cc el depósito es un cobro de cuenta corriente.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		monto, err := montoFlag(cmd, "monto")
		if err != nil {
			return err
		}
		pagos, err := pagosFlag(cmd)
		if err != nil {
			return err
		}
		tipo, _ := cmd.Flags().GetString("tipo")
		desc, _ := cmd.Flags().GetString("descripcion")
		cobro, _ := cmd.Flags().GetBool("cobro-cc")

		n := caja.NuevoMovimiento{
			Tipo:                   caja.TipoMovimiento(tipo),
			Monto:                  monto,
			Descripcion:            desc,
			Referencia:             textoFlag(cmd, "referencia"),
			EsCobroCuentaCorriente: cobro,
			Pagos:                  pagos,
		}
		if metodo, _ := cmd.Flags().GetString("metodo"); metodo != "" {
			n.MetodoPago = caja.Metodo(caja.MetodoPago(metodo))
		}
		if len(pagos) > 0 {
			n.MetodoPago = caja.Metodo(caja.MetodoMultiple)
		}
		resp, err := terminalCaja.Registrar(cmd.Context(), n)
		if err != nil {
			return err
		}
		return imprimirMovimiento(cmd, resp)
	},
}

func imprimirMovimiento(cmd *cobra.Command, resp *dto.MovimientoResponse) error {
	return imprimir(cmd.OutOrStdout(), resp, func(t *tabla) {
		m := resp.Movimiento
		t.fila("Movimiento", fmt.Sprintf("#%d %s %s", m.Orden, m.Tipo, m.Monto.StringFixed(2)))
		tablaAgregados(t, &resp.Agregados)
	})
}

// ── cerrar ────────────────────────────────────────────────────────────────────

var cerrarCmd = &cobra.Command{
	Use:   "cerrar",
	Short: "Concilia y cierra la caja (--contado omitido: sin conteo físico)",
	RunE: func(cmd *cobra.Command, args []string) error {
		var contado *decimal.Decimal
		if cmd.Flags().Changed("contado") {
			v, err := montoFlag(cmd, "contado")
			if err != nil {
				return err
			}
			contado = &v
		}
		resp, err := terminalCaja.Cerrar(cmd.Context(), contado, textoFlag(cmd, "notas"))
		if err != nil {
			return err
		}
		return imprimir(cmd.OutOrStdout(), resp, func(t *tabla) {
			c := resp.Conciliacion
			t.fila("Sesión", resp.Sesion.ID.String())
			t.fila("Esperado", c.Esperado.StringFixed(2))
			t.fila("Contado", c.Contado.StringFixed(2))
			t.fila("Diferencia", fmt.Sprintf("%s (%s, %s%%, %s)", c.Diferencia.StringFixed(2), c.Estado, c.Porcentaje.StringFixed(2), c.Severidad))
			t.fila("Otros medios", resp.Resumen.OtrosMedios.Total.StringFixed(2))
			t.fila("Total general", resp.Resumen.Totales.MontoTotalGeneral.StringFixed(2))
			t.advertencias(resp.Advertencias)
		})
	},
}

// ── reporte ───────────────────────────────────────────────────────────────────

var reporteCmd = &cobra.Command{
	Use:   "reporte <sesion-id>",
	Short: "Reporte de una sesión (abierta o cerrada)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("id de sesión inválido: %w", err)
		}
		resp, err := terminalCaja.Reporte(cmd.Context(), id)
		if err != nil {
			return err
		}
		return imprimir(cmd.OutOrStdout(), resp, func(t *tabla) {
			t.fila("Sesión", resp.Sesion.ID.String())
			t.fila("Estado", resp.Sesion.Estado)
			tablaAgregados(t, &resp.Agregados)
			t.fila("Efectivo esperado", resp.Resumen.EfectivoFisico.Esperado.StringFixed(2))
			if resp.Conciliacion != nil {
				t.fila("Diferencia", resp.Conciliacion.Diferencia.StringFixed(2))
			}
			t.movimientos(resp.Movimientos)
		})
	},
}

// ── historial ─────────────────────────────────────────────────────────────────

var historialCmd = &cobra.Command{
	Use:   "historial [sesion-id]",
	Short: "Lista las sesiones cerradas, o el detalle de una",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("id de sesión inválido: %w", err)
			}
			det, err := terminalCaja.DetalleHistorial(cmd.Context(), id)
			if err != nil {
				return err
			}
			return imprimir(cmd.OutOrStdout(), det, func(t *tabla) {
				t.fila("Sesión", det.SesionCajaID.String())
				t.fila("Cierre", det.ClosedAt.Format(time.RFC3339))
				t.fila("Diferencia", fmt.Sprintf("%s (%s)", det.Diferencia.StringFixed(2), det.Severidad))
				t.fila("Neto", det.Ganancias.Neto.StringFixed(2))
				t.movimientos(det.Detalle)
			})
		}

		filter, err := historialFilter(cmd)
		if err != nil {
			return err
		}
		if destino, _ := cmd.Flags().GetString("xlsx"); destino != "" {
			f, err := os.Create(destino)
			if err != nil {
				return err
			}
			if err := terminalCaja.ExportarHistorial(cmd.Context(), filter, f); err != nil {
				f.Close()
				return err
			}
			if err := f.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "historial exportado a %s\n", destino)
			return nil
		}

		resp, err := terminalCaja.Historial(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return imprimir(cmd.OutOrStdout(), resp, func(t *tabla) { tablaHistorial(t, resp) })
	},
}

func historialFilter(cmd *cobra.Command) (dto.HistorialFilter, error) {
	f := dto.HistorialFilter{PuntoDeVenta: viper.GetInt("punto_de_venta")}
	f.Page, _ = cmd.Flags().GetInt("page")
	f.Limit, _ = cmd.Flags().GetInt("limit")
	for _, name := range []string{"desde", "hasta"} {
		raw, _ := cmd.Flags().GetString(name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return f, fmt.Errorf("--%s: se espera YYYY-MM-DD", name)
		}
		if name == "desde" {
			f.Desde = &t
		} else {
			f.Hasta = &t
		}
	}
	return f, nil
}

// ── flag helpers ──────────────────────────────────────────────────────────────

func montoFlag(cmd *cobra.Command, name string) (decimal.Decimal, error) {
	raw, _ := cmd.Flags().GetString(name)
	if raw == "" {
		return decimal.Zero, fmt.Errorf("--%s es obligatorio", name)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("--%s: monto inválido %q", name, raw)
	}
	return d, nil
}

func textoFlag(cmd *cobra.Command, name string) *string {
	v, _ := cmd.Flags().GetString(name)
	if v == "" {
		return nil
	}
	return &v
}

func pagosFlag(cmd *cobra.Command) ([]caja.Tender, error) {
	raw, _ := cmd.Flags().GetStringArray("pago")
	return parsePagos(raw)
}

// parsePagos reads metodo=monto pairs.
func parsePagos(raw []string) ([]caja.Tender, error) {
	var out []caja.Tender
	for _, p := range raw {
		metodo, monto, ok := strings.Cut(p, "=")
		if !ok {
			return nil, fmt.Errorf("--pago %q: se espera metodo=monto", p)
		}
		d, err := decimal.NewFromString(strings.TrimSpace(monto))
		if err != nil {
			return nil, fmt.Errorf("--pago %q: monto inválido", p)
		}
		out = append(out, caja.Tender{Metodo: caja.MetodoPago(strings.TrimSpace(metodo)), Monto: d})
	}
	return out, nil
}

// exitCode: 2 validation, 3 conflict, 4 transport (retryable), 1 otherwise.
func exitCode(err error) int {
	var te *caja.TransportError
	switch {
	case caja.IsValidation(err):
		return 2
	case caja.IsConflict(err):
		return 3
	case errors.As(err, &te):
		return 4
	}
	return 1
}

func init() {
	abrirCmd.Flags().String("monto", "", "monto inicial")
	abrirCmd.Flags().String("notas", "", "notas de apertura")

	ventaCmd.Flags().String("monto", "", "total de la venta")
	ventaCmd.Flags().String("metodo", string(caja.MetodoEfectivo), "método de pago")
	ventaCmd.Flags().String("descripcion", "Venta", "descripción")
	ventaCmd.Flags().StringArray("pago", nil, "tramo de pago metodo=monto (repetible)")

	movimientoCmd.Flags().String("tipo", "", "deposit, withdrawal, expense, cancellation")
	movimientoCmd.Flags().String("monto", "", "monto")
	movimientoCmd.Flags().String("metodo", "", "método de pago")
	movimientoCmd.Flags().String("descripcion", "", "descripción")
	movimientoCmd.Flags().String("referencia", "", "referencia del cobro")
	movimientoCmd.Flags().Bool("cobro-cc", false, "cobro de cuenta corriente")
	movimientoCmd.Flags().StringArray("pago", nil, "tramo de pago metodo=monto (repetible)")
	_ = movimientoCmd.MarkFlagRequired("tipo")

	cerrarCmd.Flags().String("contado", "", "efectivo contado")
	cerrarCmd.Flags().String("notas", "", "notas de cierre")

	historialCmd.Flags().String("desde", "", "fecha de cierre desde (YYYY-MM-DD)")
	historialCmd.Flags().String("hasta", "", "fecha de cierre hasta, inclusive (YYYY-MM-DD)")
	historialCmd.Flags().Int("page", 1, "página")
	historialCmd.Flags().Int("limit", 20, "tamaño de página (máx 100)")
	historialCmd.Flags().String("xlsx", "", "exporta el filtro completo a este archivo XLSX")

	rootCmd.AddCommand(estadoCmd, abrirCmd, ventaCmd, movimientoCmd, cerrarCmd, reporteCmd, historialCmd)
}
