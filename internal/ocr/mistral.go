package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

const (
	mistralOCREndpoint  = "https://api.mistral.ai/v1/ocr"
	defaultMistralModel = "pixtral-large-latest"

	defaultChunkPages       = 8
	defaultChunkThresholdKB = 2048
	// maxChunks bounds the page-range sweep for documents whose length we
	// cannot know up front.
	maxChunks = 32
)

// MistralOCR extracts text from PDFs using the Mistral OCR API. Documents
// over the chunk threshold are processed in page ranges so a single oversized
// statement cannot blow the API's request limits.
type MistralOCR struct {
	apiKey           string
	model            string
	endpoint         string
	client           *http.Client
	chunkPages       int
	chunkThresholdKB int
}

// MistralOption configures the extractor.
type MistralOption func(*MistralOCR)

// WithChunking sets the page-range chunk size and the document size above
// which chunking kicks in. Zero values keep the defaults.
func WithChunking(pages, thresholdKB int) MistralOption {
	return func(m *MistralOCR) {
		if pages > 0 {
			m.chunkPages = pages
		}
		if thresholdKB > 0 {
			m.chunkThresholdKB = thresholdKB
		}
	}
}

// WithEndpoint overrides the API endpoint.
func WithEndpoint(endpoint string) MistralOption {
	return func(m *MistralOCR) {
		m.endpoint = endpoint
	}
}

// NewMistralOCR creates a MistralOCR extractor. If model is empty, the
// default is used.
func NewMistralOCR(apiKey, model string, opts ...MistralOption) *MistralOCR {
	if model == "" {
		model = defaultMistralModel
	}
	m := &MistralOCR{
		apiKey:           apiKey,
		model:            model,
		endpoint:         mistralOCREndpoint,
		client:           &http.Client{},
		chunkPages:       defaultChunkPages,
		chunkThresholdKB: defaultChunkThresholdKB,
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

type mistralOCRRequest struct {
	Model    string             `json:"model"`
	Document mistralOCRDocument `json:"document"`
	Pages    []int              `json:"pages,omitempty"`
}

type mistralOCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

type mistralOCRResponse struct {
	Pages []mistralOCRPage `json:"pages"`
}

type mistralOCRPage struct {
	Index    int    `json:"index"`
	Markdown string `json:"markdown"`
}

// ExtractText sends the PDF to Mistral OCR and returns the extracted text.
func (m *MistralOCR) ExtractText(ctx context.Context, pdf []byte) (string, error) {
	dataURL := "data:application/pdf;base64," + base64.StdEncoding.EncodeToString(pdf)

	if len(pdf) <= m.chunkThresholdKB*1024 {
		pages, err := m.call(ctx, dataURL, nil)
		if err != nil {
			return "", err
		}
		return joinPages(pages), nil
	}

	return m.extractChunked(ctx, dataURL)
}

// extractChunked sweeps page ranges until a chunk comes back empty. A failed
// chunk is logged and skipped; partial text beats no text for statement
// analysis.
func (m *MistralOCR) extractChunked(ctx context.Context, dataURL string) (string, error) {
	var sb strings.Builder
	gotAny := false

	for chunk := 0; chunk < maxChunks; chunk++ {
		pageRange := make([]int, m.chunkPages)
		for i := range pageRange {
			pageRange[i] = chunk*m.chunkPages + i
		}

		pages, err := m.call(ctx, dataURL, pageRange)
		if err != nil {
			if ctx.Err() != nil {
				return "", eris.Wrap(ctx.Err(), "ocr: chunked extraction canceled")
			}
			zap.L().Warn("ocr: chunk failed, skipping",
				zap.Int("chunk", chunk), zap.Error(err))
			continue
		}
		if len(pages) == 0 {
			break
		}

		if gotAny {
			sb.WriteString("\n\n")
		}
		sb.WriteString(joinPages(pages))
		gotAny = true

		// A short chunk means we ran off the end of the document.
		if len(pages) < m.chunkPages {
			break
		}
	}

	if !gotAny {
		return "", eris.New("ocr: all chunks failed")
	}
	return sb.String(), nil
}

func (m *MistralOCR) call(ctx context.Context, dataURL string, pages []int) ([]mistralOCRPage, error) {
	reqBody := mistralOCRRequest{
		Model: m.model,
		Document: mistralOCRDocument{
			Type:        "document_url",
			DocumentURL: dataURL,
		},
		Pages: pages,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: marshal mistral request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, eris.Wrap(err, "ocr: create mistral request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: mistral API call")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "ocr: read mistral response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, eris.Errorf("ocr: mistral API returned %d: %s", resp.StatusCode, string(respBody))
	}

	var ocrResp mistralOCRResponse
	if err := json.Unmarshal(respBody, &ocrResp); err != nil {
		return nil, eris.Wrap(err, "ocr: unmarshal mistral response")
	}
	return ocrResp.Pages, nil
}

func joinPages(pages []mistralOCRPage) string {
	var sb strings.Builder
	for i, page := range pages {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(page.Markdown)
	}
	return sb.String()
}
