// Package ocr extracts text from bank-statement PDFs. Documents arrive as
// raw bytes from the object store, never as paths into a shared filesystem.
package ocr

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/crestfund/lead-crm/internal/config"
)

// Extractor extracts text content from PDF bytes.
type Extractor interface {
	ExtractText(ctx context.Context, pdf []byte) (string, error)
}

// NewExtractor creates an Extractor based on config.
func NewExtractor(cfg config.OCRConfig, fcsCfg config.FCSConfig) (Extractor, error) {
	switch cfg.Provider {
	case "local", "":
		return NewPdfToText(cfg.PdfToTextPath), nil
	case "mistral":
		if cfg.MistralKey == "" {
			return nil, eris.New("ocr: mistral provider requires mistral_api_key")
		}
		return NewMistralOCR(cfg.MistralKey, cfg.MistralModel,
			WithChunking(fcsCfg.ChunkPages, fcsCfg.ChunkThresholdKB)), nil
	default:
		return nil, eris.Errorf("ocr: unknown provider %q", cfg.Provider)
	}
}
