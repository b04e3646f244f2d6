package worker

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"blendcaja/internal/caja"
	"blendcaja/internal/dto"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeArchivos struct {
	det *dto.HistorialDetalleResponse
	err error
}

func (f *fakeArchivos) DetalleHistorial(context.Context, uuid.UUID) (*dto.HistorialDetalleResponse, error) {
	return f.det, f.err
}

type fakeEmails struct{ payloads []interface{} }

func (f *fakeEmails) EnqueueEmail(_ context.Context, payload interface{}) error {
	f.payloads = append(f.payloads, payload)
	return nil
}

type fakeMailer struct {
	to, pdf string
	err     error
}

func (m *fakeMailer) SendReporteCierre(to, _, _, pdfPath string) error {
	m.to, m.pdf = to, pdfPath
	return m.err
}

func detalle() *dto.HistorialDetalleResponse {
	return &dto.HistorialDetalleResponse{HistorialItem: dto.HistorialItem{
		SesionCajaID:  uuid.New(),
		PuntoDeVenta:  2,
		ClosedAt:      time.Date(2026, 3, 10, 21, 5, 0, 0, time.UTC),
		MontoEsperado: decimal.NewFromInt(6200),
		MontoContado:  decimal.NewFromInt(6150),
		Diferencia:    decimal.NewFromInt(-50),
		Severidad:     caja.SeveridadNormal,
	}}
}

func payload(t *testing.T, id string) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(CierreJobPayload{SesionCajaID: id})
	require.NoError(t, err)
	return b
}

func TestCierreWorker_GeneraPDFYEncolaMail(t *testing.T) {
	det := detalle()
	emails := &fakeEmails{}
	w := NewCierreWorker(&fakeArchivos{det: det}, emails, "/tmp/reportes", "dueño@example.com")
	var renderDir string
	w.render = func(d *dto.HistorialDetalleResponse, dir string) (string, error) {
		renderDir = dir
		return dir + "/cierre_" + d.SesionCajaID.String() + ".pdf", nil
	}

	require.NoError(t, w.Process(context.Background(), payload(t, det.SesionCajaID.String())))

	assert.Equal(t, "/tmp/reportes", renderDir)
	require.Len(t, emails.payloads, 1)
	mail := emails.payloads[0].(EmailJobPayload)
	assert.Equal(t, "dueño@example.com", mail.ToEmail)
	assert.Equal(t, "Cierre de caja PDV 2 - 10/03/2026 21:05", mail.Subject)
	assert.Contains(t, mail.Body, "Diferencia: $-50.00 (normal)")
	assert.Contains(t, mail.PDFPath, det.SesionCajaID.String())
}

func TestCierreWorker_SinDestinatarioSoloPDF(t *testing.T) {
	emails := &fakeEmails{}
	w := NewCierreWorker(&fakeArchivos{det: detalle()}, emails, t.TempDir(), "")
	rendered := false
	w.render = func(*dto.HistorialDetalleResponse, string) (string, error) {
		rendered = true
		return "x.pdf", nil
	}

	require.NoError(t, w.Process(context.Background(), payload(t, uuid.NewString())))

	assert.True(t, rendered)
	assert.Empty(t, emails.payloads)
}

func TestCierreWorker_Errores(t *testing.T) {
	ctx := context.Background()

	w := NewCierreWorker(&fakeArchivos{}, nil, "", "")
	assert.NoError(t, w.Process(ctx, json.RawMessage(`{no`)), "malformed payload is dropped")
	assert.NoError(t, w.Process(ctx, payload(t, "no-uuid")), "bad id is dropped")

	w = NewCierreWorker(&fakeArchivos{err: caja.ErrHistorialNoEncontrado}, nil, "", "")
	err := w.Process(ctx, payload(t, uuid.NewString()))
	assert.ErrorIs(t, err, caja.ErrHistorialNoEncontrado, "archive lookup failures are retried")

	w = NewCierreWorker(&fakeArchivos{det: detalle()}, nil, "", "")
	w.render = func(*dto.HistorialDetalleResponse, string) (string, error) { return "", errors.New("disk full") }
	assert.Error(t, w.Process(ctx, payload(t, uuid.NewString())))
}

func TestCierreWorker_PDFReal(t *testing.T) {
	dir := t.TempDir()
	det := detalle()
	det.Detalle = []caja.Movimiento{{Orden: 1, Tipo: caja.MovimientoApertura, Monto: decimal.NewFromInt(5000), Descripcion: "Apertura de caja"}}
	w := NewCierreWorker(&fakeArchivos{det: det}, nil, dir, "")

	require.NoError(t, w.Process(context.Background(), payload(t, det.SesionCajaID.String())))
	_, err := os.Stat(filepath.Join(dir, "cierre_"+det.SesionCajaID.String()+".pdf"))
	assert.NoError(t, err)
}

func TestEmailWorker(t *testing.T) {
	ctx := context.Background()
	m := &fakeMailer{}
	w := NewEmailWorker(m)

	raw, _ := json.Marshal(EmailJobPayload{ToEmail: "a@b.c", Subject: "s", PDFPath: "/tmp/x.pdf"})
	require.NoError(t, w.Process(ctx, raw))
	assert.Equal(t, "a@b.c", m.to)
	assert.Equal(t, "/tmp/x.pdf", m.pdf)

	assert.NoError(t, w.Process(ctx, json.RawMessage(`{"to_email":""}`)))

	m.err = errors.New("smtp: 421")
	assert.Error(t, w.Process(ctx, raw))
}
