// SPDX-License-Identifier: MIT
package export

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	applog "tuner/internal/log"
	"tuner/internal/session"
)

const (
	sessionsPath   = "/api/sessions"
	tendenciesPath = "/api/tendencies"
	maxErrorBody   = 512
)

// HTTPExporter posts reports to the session API and reads tendencies back.
type HTTPExporter struct {
	endpoint string
	client   *http.Client
}

// NewHTTPExporter targets the API at endpoint, e.g. "http://localhost:8000".
// A nil client uses http.DefaultClient; timeouts come from the context.
func NewHTTPExporter(endpoint string, client *http.Client) (*HTTPExporter, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid export endpoint %q: %w", endpoint, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid export endpoint %q: scheme must be http or https", endpoint)
	}
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPExporter{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   client,
	}, nil
}

func (h *HTTPExporter) Name() string {
	return "http " + h.endpoint
}

// Export POSTs the report as JSON.
func (h *HTTPExporter) Export(ctx context.Context, report session.Report) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint+sessionsPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	applog.Debugf("Export: Sending session %d to %s", report.SessionID, req.URL)
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send session %d: %w", report.SessionID, err)
	}
	defer resp.Body.Close()
	defer io.Copy(io.Discard, resp.Body)

	return checkStatus(resp)
}

// Tendencies GETs the stored tendencies of an instrument.
func (h *HTTPExporter) Tendencies(ctx context.Context, instrumentID int) ([]Tendency, error) {
	q := url.Values{"instrument_id": {strconv.Itoa(instrumentID)}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.endpoint+tendenciesPath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch tendencies: %w", err)
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	var tendencies []Tendency
	if err := json.NewDecoder(resp.Body).Decode(&tendencies); err != nil {
		return nil, fmt.Errorf("failed to decode tendencies: %w", err)
	}
	return tendencies, nil
}

// checkStatus leaves the body of a 2xx response unread.
func checkStatus(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return fmt.Errorf("%w: %s: %s", ErrStatus, resp.Status, strings.TrimSpace(string(body)))
}

var (
	_ Exporter       = (*HTTPExporter)(nil)
	_ TendencySource = (*HTTPExporter)(nil)
)
