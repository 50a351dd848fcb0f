package lender

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"

	"github.com/crestfund/lead-crm/internal/model"
)

// ServiceLender is one lender entry as returned by the qualification
// service. Numeric fields may be absent, in which case figures are parsed
// out of the free-text description.
type ServiceLender struct {
	Name         string          `json:"name"`
	Tier         int             `json:"tier"`
	Preferred    bool            `json:"preferred"`
	MaxAmount    *float64        `json:"max_amount"`
	FactorRate   *float64        `json:"factor_rate"`
	TermMonths   *int            `json:"term_months"`
	Position     int             `json:"position"`
	Description  string          `json:"description"`
	Reason       string          `json:"reason"`
	Requirements json.RawMessage `json:"requirements"`
}

// QualifyResponse is the verdict split returned by the service.
type QualifyResponse struct {
	Qualified    []ServiceLender `json:"qualified"`
	NonQualified []ServiceLender `json:"non_qualified"`
}

// Qualifier decides which lenders fit a financial profile.
type Qualifier interface {
	Qualify(ctx context.Context, in model.QualificationInput) (*QualifyResponse, error)
}

// Option configures the HTTP qualifier.
type Option func(*httpQualifier)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(q *httpQualifier) {
		q.http = hc
	}
}

type httpQualifier struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewHTTPQualifier creates a client for the external qualification service.
func NewHTTPQualifier(baseURL, apiKey string, timeout time.Duration, opts ...Option) Qualifier {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	q := &httpQualifier{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

func (q *httpQualifier) Qualify(ctx context.Context, in model.QualificationInput) (*QualifyResponse, error) {
	body, err := json.Marshal(in)
	if err != nil {
		return nil, eris.Wrap(err, "lender: marshal qualification input")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.baseURL+"/qualify", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "lender: build qualification request")
	}
	req.Header.Set("Content-Type", "application/json")
	if q.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+q.apiKey)
	}

	resp, err := q.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "lender: qualification request")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "lender: read qualification response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, eris.New(fmt.Sprintf("lender: qualification service returned %d: %s", resp.StatusCode, truncate(string(data), 200)))
	}

	var out QualifyResponse
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, eris.Wrap(err, "lender: decode qualification response")
	}
	return &out, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
