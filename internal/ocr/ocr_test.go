package ocr

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crestfund/lead-crm/internal/config"
)

func TestNewExtractor_Providers(t *testing.T) {
	ext, err := NewExtractor(config.OCRConfig{Provider: "local"}, config.FCSConfig{})
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)

	ext, err = NewExtractor(config.OCRConfig{}, config.FCSConfig{})
	require.NoError(t, err)
	assert.IsType(t, &PdfToText{}, ext)

	_, err = NewExtractor(config.OCRConfig{Provider: "mistral"}, config.FCSConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mistral_api_key")

	ext, err = NewExtractor(config.OCRConfig{Provider: "mistral", MistralKey: "k"}, config.FCSConfig{})
	require.NoError(t, err)
	assert.IsType(t, &MistralOCR{}, ext)

	_, err = NewExtractor(config.OCRConfig{Provider: "tesseract"}, config.FCSConfig{})
	require.Error(t, err)
}

func TestMistralOCR_SmallDocumentSingleCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Empty(t, req.Pages)
		assert.Contains(t, req.Document.DocumentURL, "data:application/pdf;base64,")

		json.NewEncoder(w).Encode(mistralOCRResponse{Pages: []mistralOCRPage{ //nolint:errcheck
			{Index: 0, Markdown: "page one"},
			{Index: 1, Markdown: "page two"},
		}})
	}))
	defer srv.Close()

	m := NewMistralOCR("test-key", "", WithEndpoint(srv.URL))
	text, err := m.ExtractText(context.Background(), []byte("%PDF-1.4 tiny"))
	require.NoError(t, err)
	assert.Equal(t, "page one\n\npage two", text)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMistralOCR_LargeDocumentChunks(t *testing.T) {
	var pageRequests [][]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req mistralOCRRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		pageRequests = append(pageRequests, req.Pages)

		// Simulate a 3-page document: chunk one returns both its pages,
		// chunk two returns the last page, short of the chunk size.
		var pages []mistralOCRPage
		for _, p := range req.Pages {
			if p < 3 {
				pages = append(pages, mistralOCRPage{Index: p, Markdown: "pg"})
			}
		}
		json.NewEncoder(w).Encode(mistralOCRResponse{Pages: pages}) //nolint:errcheck
	}))
	defer srv.Close()

	// Threshold 1KB so the payload chunks; 2 pages per chunk.
	m := NewMistralOCR("test-key", "", WithEndpoint(srv.URL), WithChunking(2, 1))
	big := make([]byte, 2048)
	text, err := m.ExtractText(context.Background(), big)
	require.NoError(t, err)

	assert.Equal(t, [][]int{{0, 1}, {2, 3}}, pageRequests)
	assert.Equal(t, "pg\n\npg\n\npg", text)
}

func TestMistralOCR_ChunkFailureSkipped(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		var req mistralOCRRequest
		json.NewDecoder(r.Body).Decode(&req) //nolint:errcheck

		switch n {
		case 1:
			w.WriteHeader(http.StatusBadGateway)
		case 2:
			json.NewEncoder(w).Encode(mistralOCRResponse{Pages: []mistralOCRPage{ //nolint:errcheck
				{Index: req.Pages[0], Markdown: "recovered"},
			}})
		default:
			json.NewEncoder(w).Encode(mistralOCRResponse{}) //nolint:errcheck
		}
	}))
	defer srv.Close()

	m := NewMistralOCR("test-key", "", WithEndpoint(srv.URL), WithChunking(2, 1))
	text, err := m.ExtractText(context.Background(), make([]byte, 2048))
	require.NoError(t, err)
	assert.Equal(t, "recovered", text)
}

func TestMistralOCR_AllChunksFailed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	m := NewMistralOCR("test-key", "", WithEndpoint(srv.URL), WithChunking(2, 1))
	_, err := m.ExtractText(context.Background(), make([]byte, 2048))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all chunks failed")
}
