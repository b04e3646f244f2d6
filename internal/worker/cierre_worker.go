package worker

// cierre_worker.go
// Processes closing-report jobs from QueueCierre: renders the PDF of an
// archived session and, when a recipient is configured, queues the e-mail.

import (
	"context"
	"encoding/json"
	"fmt"

	"blendcaja/internal/dto"
	"blendcaja/internal/infra"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// CierreJobPayload is the job envelope sent to QueueCierre.
type CierreJobPayload struct {
	SesionCajaID string `json:"sesion_caja_id"`
}

// ArchivoSource is satisfied by service.CajaService.
type ArchivoSource interface {
	DetalleHistorial(ctx context.Context, sesionID uuid.UUID) (*dto.HistorialDetalleResponse, error)
}

// EmailEnqueuer is satisfied by *Dispatcher.
type EmailEnqueuer interface {
	EnqueueEmail(ctx context.Context, payload interface{}) error
}

// CierreWorker builds closing reports.
type CierreWorker struct {
	archivos     ArchivoSource
	emails       EmailEnqueuer
	storagePath  string
	reporteEmail string
	render       func(*dto.HistorialDetalleResponse, string) (string, error)
}

// NewCierreWorker: emails may be nil and reporteEmail empty, in which case
// only the PDF is produced.
func NewCierreWorker(archivos ArchivoSource, emails EmailEnqueuer, storagePath, reporteEmail string) *CierreWorker {
	return &CierreWorker{
		archivos:     archivos,
		emails:       emails,
		storagePath:  storagePath,
		reporteEmail: reporteEmail,
		render:       infra.GenerateCierrePDF,
	}
}

func (w *CierreWorker) Process(ctx context.Context, raw json.RawMessage) error {
	var payload CierreJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("cierre_worker: invalid payload")
		return nil
	}
	id, err := uuid.Parse(payload.SesionCajaID)
	if err != nil {
		log.Error().Err(err).Str("sesion_id", payload.SesionCajaID).Msg("cierre_worker: invalid session id")
		return nil
	}

	det, err := w.archivos.DetalleHistorial(ctx, id)
	if err != nil {
		return fmt.Errorf("cierre_worker: load archive %s: %w", id, err)
	}

	path, err := w.render(det, w.storagePath)
	if err != nil {
		return fmt.Errorf("cierre_worker: render %s: %w", id, err)
	}
	log.Info().Str("sesion_id", id.String()).Str("pdf", path).Msg("cierre_worker: reporte generado")

	if w.reporteEmail == "" || w.emails == nil {
		return nil
	}
	mail := EmailJobPayload{
		ToEmail: w.reporteEmail,
		Subject: fmt.Sprintf("Cierre de caja PDV %d - %s", det.PuntoDeVenta, det.ClosedAt.Format("02/01/2006 15:04")),
		Body: fmt.Sprintf("Esperado: $%s\nContado: $%s\nDiferencia: $%s (%s)\n",
			det.MontoEsperado.StringFixed(2), det.MontoContado.StringFixed(2),
			det.Diferencia.StringFixed(2), det.Severidad),
		PDFPath: path,
	}
	if err := w.emails.EnqueueEmail(ctx, mail); err != nil {
		return fmt.Errorf("cierre_worker: enqueue email: %w", err)
	}
	return nil
}
