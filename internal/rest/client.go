// Package rest is the HTTP client for the library backend. It turns the
// backend's JSON contract into typed calls and classifies every failure as
// transient, rejected or fatal.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mesh-intelligence/libpanel/pkg/types"
)

// RequestIDHeader carries a per-request UUID so client and server logs can
// be matched.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 512

// Client talks to the backend over HTTP.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// New creates a client for cfg.ServerURL with cfg.Timeout per request.
func New(cfg types.Config, logger *zap.Logger) *Client {
	return NewWithHTTPClient(cfg.ServerURL, &http.Client{Timeout: cfg.Timeout}, logger)
}

// NewWithHTTPClient creates a client using hc for transport.
func NewWithHTTPClient(baseURL string, hc *http.Client, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    hc,
		logger:  logger,
	}
}

// ListTables returns the selectable table identifiers (GET /table).
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	var tables []string
	if err := c.do(ctx, http.MethodGet, "/table", nil, &tables); err != nil {
		return nil, err
	}
	return tables, nil
}

// List fetches every row of a table (GET /{table}).
func (c *Client) List(ctx context.Context, table string) ([]types.Record, error) {
	s, err := types.Lookup(table)
	if err != nil {
		return nil, err
	}
	path := "/" + s.Route()
	var raw []map[string]any
	if err := c.do(ctx, http.MethodGet, path, nil, &raw); err != nil {
		return nil, err
	}
	rows := make([]types.Record, 0, len(raw))
	for _, r := range raw {
		rec, err := s.Normalize(r)
		if err != nil {
			return nil, c.fatal(http.MethodGet, path, err)
		}
		rows = append(rows, rec)
	}
	return rows, nil
}

// Create posts a new row (POST /{table}) and returns the server's copy,
// which carries the real primary key.
func (c *Client) Create(ctx context.Context, table string, rec types.Record) (types.Record, error) {
	s, err := types.Lookup(table)
	if err != nil {
		return nil, err
	}
	return c.write(ctx, s, http.MethodPost, "/"+s.Route(), rec)
}

// Update replaces the row stored under key (PUT /{table}/{key}) and returns
// the server's copy.
func (c *Client) Update(ctx context.Context, table string, key any, rec types.Record) (types.Record, error) {
	s, err := types.Lookup(table)
	if err != nil {
		return nil, err
	}
	return c.write(ctx, s, http.MethodPut, keyPath(s, key), rec)
}

// Delete removes the row stored under key (DELETE /{table}/{key}).
func (c *Client) Delete(ctx context.Context, table string, key any) error {
	s, err := types.Lookup(table)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodDelete, keyPath(s, key), nil, nil)
}

// ListLibrarians returns the librarian picker entries (GET /librarian).
func (c *Client) ListLibrarians(ctx context.Context) ([]types.Librarian, error) {
	var out []types.Librarian
	if err := c.do(ctx, http.MethodGet, "/"+types.RouteName(types.TableLibrarian), nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListBorrowings returns the enriched borrowings of one card
// (GET /borrowing-readonly/{isTeacher}/{card}).
func (c *Client) ListBorrowings(ctx context.Context, isTeacher bool, card int64) ([]types.BorrowingView, error) {
	var out []types.BorrowingView
	path := fmt.Sprintf("/borrowing-readonly/%t/%d", isTeacher, card)
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func keyPath(s types.Schema, key any) string {
	return "/" + s.Route() + "/" + url.PathEscape(types.KeyString(key))
}

func (c *Client) write(ctx context.Context, s types.Schema, method, path string, rec types.Record) (types.Record, error) {
	var raw map[string]any
	if err := c.do(ctx, method, path, rec, &raw); err != nil {
		return nil, err
	}
	out, err := s.Normalize(raw)
	if err != nil {
		return nil, c.fatal(method, path, err)
	}
	if _, ok := out[s.PrimaryKey]; !ok {
		return nil, c.fatal(method, path, fmt.Errorf("response has no %s", s.PrimaryKey))
	}
	if method == http.MethodPost && types.IsSentinel(out[s.PrimaryKey]) {
		return nil, c.fatal(method, path, fmt.Errorf("response has no usable %s: %v", s.PrimaryKey, out[s.PrimaryKey]))
	}
	return out, nil
}

func (c *Client) fatal(method, path string, err error) error {
	return &types.RequestError{Method: method, Path: path, Class: types.Fatal, Err: err}
}

// do sends one request and decodes a JSON response into out when out is
// non-nil.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	requestID := newRequestID()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logger := c.logger.With(
		zap.String("method", method),
		zap.String("path", path),
		zap.String("request_id", requestID),
	)
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		logger.Warn("Backend request failed", zap.Error(err))
		return &types.RequestError{Method: method, Path: path, Class: types.Transient, Err: err}
	}
	defer resp.Body.Close()

	logger.Debug("Backend responded",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		class := classify(resp.StatusCode)
		logger.Warn("Backend returned an error status",
			zap.Int("status", resp.StatusCode),
			zap.Stringer("class", class),
		)
		return &types.RequestError{
			Method: method,
			Path:   path,
			Status: resp.StatusCode,
			Class:  class,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("empty response body")
		}
		logger.Error("Failed to decode backend response", zap.Error(err))
		return &types.RequestError{Method: method, Path: path, Status: resp.StatusCode, Class: types.Fatal, Err: err}
	}
	return nil
}

// classify maps a non-2xx status to an error class.
func classify(status int) types.ErrorClass {
	switch {
	case status == http.StatusRequestTimeout, status == http.StatusTooManyRequests:
		return types.Transient
	case status >= 500:
		return types.Transient
	case status >= 400:
		return types.Rejected
	default:
		return types.Fatal
	}
}

func newRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}
