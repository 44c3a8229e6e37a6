package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/hugo-lorenzo-mato/reelsight/internal/api"
	"github.com/hugo-lorenzo-mato/reelsight/internal/core"
)

// apiError is a non-2xx response from the server.
type apiError struct {
	Status  int
	Code    string
	Message string
}

func (e *apiError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s (%s, HTTP %d)", e.Message, e.Code, e.Status)
	}
	return fmt.Sprintf("%s (HTTP %d)", e.Message, e.Status)
}

func isNotFound(err error) bool {
	var ae *apiError
	return errors.As(err, &ae) && ae.Status == http.StatusNotFound
}

// apiClient talks to a running reelsight server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string) *apiClient {
	return &apiClient{base: base, http: &http.Client{Timeout: 30 * time.Second}}
}

func (c *apiClient) Submit(ctx context.Context, req api.SubmitAnalysisRequest) (*api.SubmitAnalysisResponse, error) {
	var out api.SubmitAnalysisResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/analyses", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Get(ctx context.Context, id core.JobID) (core.ProgressView, error) {
	var out core.ProgressView
	err := c.do(ctx, http.MethodGet, "/api/v1/analyses/"+url.PathEscape(string(id)), nil, &out)
	return out, err
}

func (c *apiClient) List(ctx context.Context, status core.JobStatus, limit, offset int) (*api.ListAnalysesResponse, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", string(status))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	path := "/api/v1/analyses"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var out api.ListAnalysesResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) Delete(ctx context.Context, id core.JobID) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/analyses/"+url.PathEscape(string(id)), nil, nil)
}

// Wait polls until the job is terminal.
func (c *apiClient) Wait(ctx context.Context, id core.JobID, interval time.Duration, onUpdate func(core.ProgressView)) (core.ProgressView, error) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		view, err := c.Get(ctx, id)
		if err != nil {
			return view, err
		}
		if onUpdate != nil {
			onUpdate(view)
		}
		if view.Status.IsTerminal() {
			return view, nil
		}
		select {
		case <-ctx.Done():
			return view, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("contacting %s: %w", c.base, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		ae := &apiError{Status: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var payload struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&payload) == nil && payload.Error != "" {
			ae.Message, ae.Code = payload.Error, payload.Code
		}
		return ae
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
