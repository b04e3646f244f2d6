package infra

// Closing report generation using go-pdf/fpdf.
// One A4 page per closed session with:
//   - Session header (punto de venta, apertura/cierre, operators)
//   - Physical cash breakdown ending in the expected amount
//   - Other tenders (never in the drawer)
//   - Reconciliation: counted, difference, severity
//   - Earnings breakdown
//   - Movement log
//
// The output file is saved to storagePath/cierre_{sesion_id}.pdf.

import (
	"fmt"
	"os"
	"path/filepath"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
)

// GenerateCierrePDF renders the closing report of an archived session.
// storagePath is created if needed. Returns the path of the generated file.
func GenerateCierrePDF(det *dto.HistorialDetalleResponse, storagePath string) (string, error) {
	if err := os.MkdirAll(storagePath, 0755); err != nil {
		return "", fmt.Errorf("pdf: create storage dir: %w", err)
	}
	filePath := filepath.Join(storagePath, fmt.Sprintf("cierre_%s.pdf", det.SesionCajaID))

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 30
	labelW := contentW * 0.65
	valueW := contentW - labelW

	linea := func(label string, monto decimal.Decimal) {
		pdf.CellFormat(labelW, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(valueW, 6, "$"+monto.StringFixed(2), "", 1, "R", false, 0, "")
	}
	titulo := func(s string) {
		pdf.Ln(3)
		pdf.SetFont("Helvetica", "B", 11)
		pdf.CellFormat(contentW, 7, tr(s), "B", 1, "L", false, 0, "")
		pdf.SetFont("Helvetica", "", 9)
	}

	// ── Header ───────────────────────────────────────────────────────────────
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(contentW, 9, "Cierre de caja", "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 9)
	pdf.CellFormat(contentW, 5, tr(fmt.Sprintf("Punto de venta %d  ·  Sesión %s", det.PuntoDeVenta, det.SesionCajaID)), "", 1, "C", false, 0, "")
	pdf.CellFormat(contentW, 5, tr(fmt.Sprintf("Apertura %s  ·  Cierre %s",
		det.OpenedAt.Format("02/01/2006 15:04"), det.ClosedAt.Format("02/01/2006 15:04"))), "", 1, "C", false, 0, "")

	// ── Physical cash ─────────────────────────────────────────────────────────
	ef := det.Resumen.EfectivoFisico
	titulo("Efectivo físico")
	linea("Monto inicial", ef.Apertura)
	linea("Ventas en efectivo", ef.VentasEfectivo)
	linea("Cobros cuenta corriente (efectivo)", ef.PagosCuentaCorrienteEfectivo)
	linea("Depósitos", ef.Depositos)
	linea("Gastos", ef.Gastos.Neg())
	linea("Retiros", ef.Retiros.Neg())
	linea("Cancelaciones", ef.Cancelaciones.Neg())
	pdf.SetFont("Helvetica", "B", 9)
	linea("Efectivo esperado", ef.Esperado)

	// ── Other tenders ─────────────────────────────────────────────────────────
	om := det.Resumen.OtrosMedios
	titulo("Otros medios")
	linea("Ventas con tarjeta", om.VentasTarjeta)
	linea("Ventas por transferencia", om.VentasTransferencia)
	linea("Cobros cuenta corriente (tarjeta)", om.PagosCuentaCorrienteTarjeta)
	linea("Cobros cuenta corriente (transferencia)", om.PagosCuentaCorrienteTransferencia)
	pdf.SetFont("Helvetica", "B", 9)
	linea("Total otros medios", om.Total)

	// ── Reconciliation ────────────────────────────────────────────────────────
	c := det.Conciliacion
	titulo("Arqueo")
	linea("Esperado", c.Esperado)
	if c.ConteoFisico {
		linea("Contado", c.Contado)
	} else {
		pdf.CellFormat(contentW, 6, tr("Sin conteo físico: se tomó el esperado como real"), "", 1, "L", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 9)
	linea(fmt.Sprintf("Diferencia (%s, %s%%, %s)", c.Estado, c.Porcentaje.StringFixed(2), c.Severidad), c.Diferencia)
	pdf.SetFont("Helvetica", "", 9)
	for _, a := range c.Advertencias {
		pdf.MultiCell(contentW, 5, tr("! "+a.Mensaje), "", "L", false)
	}

	// ── Earnings ──────────────────────────────────────────────────────────────
	g := det.Ganancias
	titulo("Ganancias")
	linea("Efectivo", g.Efectivo)
	linea("Tarjeta", g.Tarjeta)
	linea("Transferencia", g.Transferencia)
	linea("Total general", g.MontoTotalGeneral)
	pdf.SetFont("Helvetica", "B", 9)
	linea("Neto", g.Neto)

	// ── Movements ─────────────────────────────────────────────────────────────
	titulo("Movimientos")
	cols := []float64{10, 30, 28, 30, contentW - 98 - 30}
	pdf.SetFont("Helvetica", "B", 8)
	for i, h := range []string{"#", "Hora", "Tipo", "Medio", "Descripción"} {
		pdf.CellFormat(cols[i], 5, tr(h), "B", 0, "L", false, 0, "")
	}
	pdf.CellFormat(30, 5, "Monto", "B", 1, "R", false, 0, "")
	pdf.SetFont("Helvetica", "", 8)
	for _, m := range det.Detalle {
		metodo := "-"
		if m.MetodoPago != nil {
			metodo = string(*m.MetodoPago)
		}
		desc := m.Descripcion
		if m.EsCobroCuentaCorriente {
			desc = "[cta cte] " + desc
		}
		if len(desc) > 40 {
			desc = desc[:39] + "…"
		}
		pdf.CellFormat(cols[0], 5, fmt.Sprint(m.Orden), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1], 5, m.CreatedAt.Format("15:04:05"), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[2], 5, tipoLabel(m.Tipo), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[3], 5, metodo, "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[4], 5, tr(desc), "", 0, "L", false, 0, "")
		pdf.CellFormat(30, 5, "$"+m.Monto.StringFixed(2), "", 1, "R", false, 0, "")
	}

	if err := pdf.OutputFileAndClose(filePath); err != nil {
		return "", fmt.Errorf("pdf: write file: %w", err)
	}
	return filePath, nil
}

func tipoLabel(t caja.TipoMovimiento) string {
	switch t {
	case caja.MovimientoApertura:
		return "apertura"
	case caja.MovimientoVenta:
		return "venta"
	case caja.MovimientoDeposito:
		return "deposito"
	case caja.MovimientoRetiro:
		return "retiro"
	case caja.MovimientoGasto:
		return "gasto"
	case caja.MovimientoCancelacion:
		return "cancelacion"
	case caja.MovimientoCierre:
		return "cierre"
	}
	return string(t)
}
