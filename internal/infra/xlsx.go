package infra

// History export using xuri/excelize.
// Sheet "Historial": one row per archived session.
// Sheet "Ganancias": the summed earnings of the exported period.

import (
	"fmt"
	"io"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

const (
	hojaHistorial = "Historial"
	hojaGanancias = "Ganancias"
)

var historialHeaders = []string{
	"Sesión", "Punto de venta", "Apertura", "Cierre", "Monto inicial", "Esperado",
	"Contado", "Diferencia", "Estado", "Severidad", "Total general", "Movimientos",
}

// WriteHistorialXLSX writes the archived sessions and the period totals to w.
func WriteHistorialXLSX(w io.Writer, items []dto.HistorialItem, total caja.Ganancias) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", hojaHistorial); err != nil {
		return fmt.Errorf("xlsx: rename sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return fmt.Errorf("xlsx: style: %w", err)
	}

	header := make([]interface{}, len(historialHeaders))
	for i, h := range historialHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(hojaHistorial, "A1", &header); err != nil {
		return fmt.Errorf("xlsx: header: %w", err)
	}
	if err := f.SetRowStyle(hojaHistorial, 1, 1, bold); err != nil {
		return fmt.Errorf("xlsx: header style: %w", err)
	}

	for i, it := range items {
		row := []interface{}{
			it.SesionCajaID.String(),
			it.PuntoDeVenta,
			it.OpenedAt.Format("2006-01-02 15:04"),
			it.ClosedAt.Format("2006-01-02 15:04"),
			numero(it.MontoInicial),
			numero(it.MontoEsperado),
			numero(it.MontoContado),
			numero(it.Diferencia),
			string(it.EstadoDiferencia),
			string(it.Severidad),
			numero(it.MontoTotalGeneral),
			it.Movimientos,
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := f.SetSheetRow(hojaHistorial, cell, &row); err != nil {
			return fmt.Errorf("xlsx: row %d: %w", i+2, err)
		}
	}
	if len(items) > 0 {
		last := fmt.Sprintf("K%d", len(items)+1)
		if err := f.SetCellStyle(hojaHistorial, "E2", last, money); err != nil {
			return fmt.Errorf("xlsx: money style: %w", err)
		}
	}
	_ = f.SetColWidth(hojaHistorial, "A", "A", 38)
	_ = f.SetColWidth(hojaHistorial, "B", "L", 15)

	if _, err := f.NewSheet(hojaGanancias); err != nil {
		return fmt.Errorf("xlsx: sheet: %w", err)
	}
	resumen := []struct {
		label string
		valor decimal.Decimal
	}{
		{"Efectivo", total.Efectivo},
		{"Tarjeta", total.Tarjeta},
		{"Transferencia", total.Transferencia},
		{"Total ventas", total.TotalVentas},
		{"Cobros cuenta corriente", total.TotalPagosCuentaCorriente},
		{"Depósitos", total.Depositos},
		{"Gastos", total.Gastos},
		{"Retiros", total.Retiros},
		{"Cancelaciones", total.Cancelaciones},
		{"Total general", total.MontoTotalGeneral},
		{"Neto", total.Neto},
	}
	_ = f.SetCellValue(hojaGanancias, "A1", "Sesiones")
	_ = f.SetCellValue(hojaGanancias, "B1", total.Sesiones)
	for i, r := range resumen {
		_ = f.SetCellValue(hojaGanancias, fmt.Sprintf("A%d", i+2), r.label)
		_ = f.SetCellValue(hojaGanancias, fmt.Sprintf("B%d", i+2), numero(r.valor))
	}
	_ = f.SetCellStyle(hojaGanancias, "B2", fmt.Sprintf("B%d", len(resumen)+1), money)
	_ = f.SetColWidth(hojaGanancias, "A", "A", 26)

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("xlsx: write: %w", err)
	}
	return nil
}

func numero(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}
