// Package export produces the downloadable invoice image and the archive
// spreadsheet, saving the invoice once its image has been produced.
package export

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/garyjia/invoice-desk/internal/builder"
	"github.com/garyjia/invoice-desk/internal/domain/entity"
	"github.com/garyjia/invoice-desk/internal/render"
	"go.uber.org/zap"
)

var (
	// ErrNotReady means the draft failed validation; nothing was produced
	ErrNotReady = errors.New("invoice is not ready to export")

	// ErrCaptureFailed means no image was produced; the invoice was not saved
	ErrCaptureFailed = errors.New("failed to generate invoice image")

	// ErrSaveFailed means the image is valid but the invoice was not archived
	ErrSaveFailed = errors.New("invoice image generated but not saved")
)

// DefaultDelay is the pause before an asynchronous export resolves
const DefaultDelay = 300 * time.Millisecond

// Renderer turns a record into a printable view
type Renderer interface {
	Render(record entity.InvoiceRecord, totals entity.Totals) render.View
}

// Capturer turns a printable view into image bytes
type Capturer interface {
	Capture(view render.View) ([]byte, error)
}

// FileStorage keeps a copy of every exported artifact
type FileStorage interface {
	SaveFile(name string, content []byte) (string, error)
}

// Draft is the builder surface the exporter drives
type Draft interface {
	Record() entity.InvoiceRecord
	Totals() entity.Totals
	Violations() builder.Violations
	Save() (entity.InvoiceRecord, error)
}

// Artifact is one exported invoice image
type Artifact struct {
	FileName    string
	Path        string
	ContentType string
	Content     []byte
	Invoice     entity.InvoiceRecord
}

// Result is delivered by ExportAsync
type Result struct {
	Artifact Artifact
	Err      error
}

// Exporter renders, captures and stores the draft, then saves it
type Exporter struct {
	brand    string
	renderer Renderer
	capturer Capturer
	files    FileStorage
	delay    time.Duration
	logger   *zap.Logger
}

// NewExporter wires an exporter; files may be nil to skip keeping a copy
func NewExporter(brand string, renderer Renderer, capturer Capturer, files FileStorage, delay time.Duration, logger *zap.Logger) *Exporter {
	return &Exporter{
		brand:    brand,
		renderer: renderer,
		capturer: capturer,
		files:    files,
		delay:    delay,
		logger:   logger,
	}
}

// FileName returns "<brand>-Invoice-<invoiceNumber>.png" with spaces in the
// brand replaced by hyphens
func FileName(brand, invoiceNumber string) string {
	return strings.Join(strings.Fields(brand), "-") + "-Invoice-" + invoiceNumber + ".png"
}

// Export produces the image for the current draft and then saves the draft.
// If capturing fails the draft is not saved. If only saving fails, the
// returned artifact is still usable and the error wraps ErrSaveFailed.
func (e *Exporter) Export(draft Draft) (Artifact, error) {
	if v := draft.Violations(); !v.Empty() {
		return Artifact{}, fmt.Errorf("%w: %d field(s) need attention", ErrNotReady, len(v))
	}

	record := draft.Record()
	view := e.renderer.Render(record, draft.Totals())

	content, err := e.capturer.Capture(view)
	if err != nil {
		e.logger.Error("Failed to capture invoice",
			zap.String("invoice_number", record.InvoiceNumber),
			zap.Error(err))
		return Artifact{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
	}

	artifact := Artifact{
		FileName:    FileName(e.brand, record.InvoiceNumber),
		ContentType: "image/png",
		Content:     content,
		Invoice:     record,
	}

	if e.files != nil {
		path, err := e.files.SaveFile(artifact.FileName, content)
		if err != nil {
			return Artifact{}, fmt.Errorf("%w: %v", ErrCaptureFailed, err)
		}
		artifact.Path = path
	}

	e.logger.Info("Invoice exported",
		zap.String("invoice_number", record.InvoiceNumber),
		zap.String("file_name", artifact.FileName),
		zap.Int("size", len(content)))

	saved, err := draft.Save()
	if err != nil {
		return artifact, fmt.Errorf("%w: %v", ErrSaveFailed, err)
	}
	artifact.Invoice = saved
	return artifact, nil
}

// ExportAsync runs Export after the configured delay. There is no
// cancellation and no guard against overlapping exports; callers serialise
// access to draft themselves.
func (e *Exporter) ExportAsync(draft Draft) <-chan Result {
	out := make(chan Result, 1)
	go func() {
		defer close(out)
		if e.delay > 0 {
			time.Sleep(e.delay)
		}
		artifact, err := e.Export(draft)
		out <- Result{Artifact: artifact, Err: err}
	}()
	return out
}
