// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package registry is a client for the HTTP registry that stores mission
// configuration, per-batch processing records and the event log.
package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cardinalhq/satready/internal/logctx"
)

const (
	DefaultBaseURL    = "http://localhost:8000/api"
	DefaultAuthScheme = "Token"
	DefaultTimeout    = 30 * time.Second

	maxErrorBody = 4 * 1024
)

// Config selects the registry endpoint and credentials.
type Config struct {
	URL        string        `mapstructure:"url"`
	Token      string        `mapstructure:"token"`
	AuthScheme string        `mapstructure:"auth_scheme"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

func DefaultConfig() Config {
	return Config{
		URL:        DefaultBaseURL,
		AuthScheme: DefaultAuthScheme,
		Timeout:    DefaultTimeout,
	}
}

// Client talks to the registry. It is safe for concurrent use.
type Client struct {
	baseURL    string
	token      string
	authScheme string
	client     *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultBaseURL
	}
	if cfg.AuthScheme == "" {
		cfg.AuthScheme = DefaultAuthScheme
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		token:      cfg.Token,
		authScheme: cfg.AuthScheme,
		client:     &http.Client{Timeout: cfg.Timeout},
	}
}

// ListMissionConfigs returns every configured mission.
func (c *Client) ListMissionConfigs(ctx context.Context) ([]MissionConfig, error) {
	var out []MissionConfig
	if _, err := c.do(ctx, "list-configuration", http.MethodGet, "/configuration/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMissionConfig returns the configuration of a single mission.
func (c *Client) GetMissionConfig(ctx context.Context, mission string) (MissionConfig, error) {
	var out MissionConfig
	p := "/configuration/" + url.PathEscape(mission) + "/"
	if _, err := c.do(ctx, "get-configuration", http.MethodGet, p, nil, nil, &out); err != nil {
		return MissionConfig{}, err
	}
	return out, nil
}

// ListProcessed returns the processing records matching q.
func (c *Client) ListProcessed(ctx context.Context, q ProcessedQuery) ([]ProcessedRecord, error) {
	params := url.Values{}
	if q.SatelliteMission != "" {
		params.Set("satellite_mission", q.SatelliteMission)
	}
	if q.Status != "" {
		params.Set("status", q.Status)
	}
	if q.DateTag != "" {
		params.Set("date_tag", q.DateTag)
	}
	var out []ProcessedRecord
	if _, err := c.do(ctx, "list-data", http.MethodGet, "/data/", params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateProcessed stores a new processing record and returns the HTTP status.
func (c *Client) CreateProcessed(ctx context.Context, rec ProcessedRecord) (int, error) {
	return c.do(ctx, "create-data", http.MethodPost, "/data/", nil, toWrite(rec), nil)
}

// UpdateProcessed patches the record with the given id and returns the HTTP status.
func (c *Client) UpdateProcessed(ctx context.Context, id ID, rec ProcessedRecord) (int, error) {
	p := "/data/" + url.PathEscape(id.String()) + "/"
	return c.do(ctx, "update-data", http.MethodPatch, p, nil, toWrite(rec), nil)
}

// UpsertProcessed updates the first record carrying rec.DateTag, or creates
// one when none exists. The lookup is by date tag only and is not scoped to
// rec.SatelliteMission, so a record of another mission with the same tag is
// the one that gets updated.
func (c *Client) UpsertProcessed(ctx context.Context, rec ProcessedRecord) (int, error) {
	existing, err := c.ListProcessed(ctx, ProcessedQuery{DateTag: rec.DateTag})
	if err != nil {
		return 0, fmt.Errorf("lookup existing record for date %s: %w", rec.DateTag, err)
	}
	if len(existing) > 0 {
		logctx.FromContext(ctx).Debug("Updating existing processing record",
			slog.String("id", existing[0].ID.String()),
			slog.String("record_mission", existing[0].SatelliteMission),
			slog.String("mission", rec.SatelliteMission),
			slog.String("date_tag", rec.DateTag))
		return c.UpdateProcessed(ctx, existing[0].ID, rec)
	}
	return c.CreateProcessed(ctx, rec)
}

// ListEvents returns the complete event log.
func (c *Client) ListEvents(ctx context.Context) ([]Event, error) {
	var out []Event
	if _, err := c.do(ctx, "list-events", http.MethodGet, "/events/", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEvent appends an event to the log and returns the id the registry
// assigned to it. Anything but 201 Created is an error.
func (c *Client) CreateEvent(ctx context.Context, ev NewEvent) (ID, error) {
	var out createdEvent
	code, err := c.do(ctx, "create-event", http.MethodPost, "/events/", nil, ev, &out)
	if err != nil {
		return "", err
	}
	if code != http.StatusCreated {
		recordRequestError("create-event", "unexpected_status")
		return "", &StatusError{Op: "create-event", Code: code}
	}
	if out.MessageID == "" {
		recordRequestError("create-event", "missing_id")
		return "", fmt.Errorf("registry create-event: response carries no message_id")
	}
	return out.MessageID, nil
}

func toWrite(rec ProcessedRecord) processedWrite {
	return processedWrite{
		SatelliteMission: rec.SatelliteMission,
		Status:           rec.Status,
		DateTag:          rec.DateTag,
		Files:            rec.Files,
	}
}

// do performs one request. A non-2xx answer is returned as *StatusError along
// with its status code; out is decoded only on success.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body, out any) (int, error) {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("registry %s: encode body: %w", op, err)
		}
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, rdr)
	if err != nil {
		return 0, fmt.Errorf("registry %s: create request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", c.authScheme+" "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		recordRequestError(op, "http_error")
		return 0, fmt.Errorf("registry %s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		recordRequestError(op, "bad_status")
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &StatusError{Op: op, Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			recordRequestError(op, "decode_error")
			return resp.StatusCode, fmt.Errorf("registry %s: decode response: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}
