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

package registry_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/satready/internal/logctx"
	"github.com/cardinalhq/satready/internal/registry"
	"github.com/cardinalhq/satready/internal/registry/registrytest"
)

func newClient(srv *registrytest.Server, token string) *registry.Client {
	return registry.NewClient(registry.Config{URL: srv.BaseURL(), Token: token})
}

func TestClient_MissionConfigs(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddMission(registry.MissionConfig{
		SatelliteMission: "GOES16",
		FolderLocations:  map[string]string{"raw": "L0", "processed": "L1"},
		FTPServer:        "ftp.example.org",
		FTPPort:          21,
	})

	c := newClient(srv, "")
	all, err := c.ListMissionConfigs(t.Context())
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "GOES16", all[0].SatelliteMission)

	one, err := c.GetMissionConfig(t.Context(), "GOES16")
	require.NoError(t, err)
	assert.Equal(t, 21, one.FTPPort)
	assert.Equal(t, "L1", one.FolderLocations["processed"])

	_, err = c.GetMissionConfig(t.Context(), "NOAA20")
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrRegistryUnavailable)
	var se *registry.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusNotFound, se.Code)
}

func TestClient_ListProcessedFilters(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddRecord(registry.ProcessedRecord{SatelliteMission: "GOES16", Status: "ready", DateTag: "202401011200"})
	srv.AddRecord(registry.ProcessedRecord{SatelliteMission: "GOES16", Status: "done", DateTag: "202401011300"})
	srv.AddRecord(registry.ProcessedRecord{SatelliteMission: "NOAA20", Status: "ready", DateTag: "202401011200"})

	c := newClient(srv, "")

	recs, err := c.ListProcessed(t.Context(), registry.ProcessedQuery{SatelliteMission: "GOES16"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	recs, err = c.ListProcessed(t.Context(), registry.ProcessedQuery{SatelliteMission: "GOES16", Status: "done"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "202401011300", recs[0].DateTag)

	recs, err = c.ListProcessed(t.Context(), registry.ProcessedQuery{DateTag: "202401011200"})
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestClient_OmitsUnsetQueryParams(t *testing.T) {
	var rawQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawQuery = r.URL.RawQuery
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c := registry.NewClient(registry.Config{URL: srv.URL})
	_, err := c.ListProcessed(t.Context(), registry.ProcessedQuery{DateTag: "202401011200"})
	require.NoError(t, err)
	assert.Equal(t, "date_tag=202401011200", rawQuery)
}

func TestClient_UpsertCreatesThenUpdates(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	c := newClient(srv, "")

	code, err := c.UpsertProcessed(t.Context(), registry.ProcessedRecord{
		SatelliteMission: "GOES16",
		Status:           registry.StatusReady,
		DateTag:          "202401011200",
		Files:            []string{"/GOES16/202401011200/L0/a.nc"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusCreated, code)
	require.Len(t, srv.Records(), 1)

	code, err = c.UpsertProcessed(t.Context(), registry.ProcessedRecord{
		SatelliteMission: "GOES16",
		Status:           registry.StatusDownloading,
		DateTag:          "202401011200",
		Files:            []string{"/GOES16/202401011200/L0/a.nc", "/GOES16/202401011200/L1/b.nc"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	recs := srv.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, registry.StatusDownloading, recs[0].Status)
	assert.Len(t, recs[0].Files, 2)
}

// The upsert lookup ignores the mission: a record of another mission that
// shares the date tag is overwritten instead of a new one being created.
func TestClient_UpsertLooksUpByDateTagAcrossMissions(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	other := srv.AddRecord(registry.ProcessedRecord{
		SatelliteMission: "NOAA20",
		Status:           "done",
		DateTag:          "202401011200",
	})

	c := newClient(srv, "")
	code, err := c.UpsertProcessed(t.Context(), registry.ProcessedRecord{
		SatelliteMission: "GOES16",
		Status:           registry.StatusReady,
		DateTag:          "202401011200",
		Files:            []string{"f"},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	recs := srv.Records()
	require.Len(t, recs, 1)
	assert.Equal(t, other.ID, recs[0].ID)
	assert.Equal(t, "GOES16", recs[0].SatelliteMission)
	assert.Equal(t, registry.StatusReady, recs[0].Status)
}

func TestClient_UpsertLogsThroughContextLogger(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.AddRecord(registry.ProcessedRecord{
		SatelliteMission: "NOAA20",
		Status:           "done",
		DateTag:          "202401011200",
	})

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := logctx.WithLogger(t.Context(), logger.With(slog.String("sweep", "01SWEEP")))

	_, err := newClient(srv, "").UpsertProcessed(ctx, registry.ProcessedRecord{
		SatelliteMission: "GOES16",
		Status:           registry.StatusReady,
		DateTag:          "202401011200",
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "Updating existing processing record")
	assert.Contains(t, out, "sweep=01SWEEP")
	assert.Contains(t, out, "record_mission=NOAA20")
}

func TestClient_UpsertSurfacesLookupFailure(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.FailRoute("list-data", http.StatusBadGateway)

	c := newClient(srv, "")
	_, err := c.UpsertProcessed(t.Context(), registry.ProcessedRecord{SatelliteMission: "GOES16", DateTag: "202401011200"})
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrRegistryUnavailable)
	assert.Equal(t, 0, srv.Calls("create-data"))
}

func TestClient_Events(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	c := newClient(srv, "")

	id, err := c.CreateEvent(t.Context(), registry.NewEvent{
		QueueName:   "ftp-tasks",
		Content:     `{"status":"ready"}`,
		ServiceName: "FTP Checker",
		ProducerIP:  "10.0.0.1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	events, err := c.ListEvents(t.Context())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, `{"status":"ready"}`, events[0].Content)
	assert.Equal(t, "ftp-tasks", events[0].QueueName)
}

func TestClient_CreateEventRequiresCreated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"message_id": 7}`))
	}))
	defer srv.Close()

	c := registry.NewClient(registry.Config{URL: srv.URL})
	id, err := c.CreateEvent(t.Context(), registry.NewEvent{Content: "x"})
	require.Error(t, err)
	assert.Empty(t, id)
	assert.ErrorIs(t, err, registry.ErrRegistryUnavailable)
}

func TestClient_SendsToken(t *testing.T) {
	srv := registrytest.New()
	defer srv.Close()
	srv.RequireToken("s3cret")

	_, err := newClient(srv, "").ListEvents(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")

	_, err = newClient(srv, "s3cret").ListEvents(t.Context())
	require.NoError(t, err)
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := registry.NewClient(registry.Config{URL: srv.URL})
	_, err := c.ListEvents(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrRegistryUnavailable)
	assert.Contains(t, err.Error(), "status 500")
}

func TestID_AcceptsNumbersAndStrings(t *testing.T) {
	var rec registry.ProcessedRecord
	require.NoError(t, json.Unmarshal([]byte(`{"id": 42, "date_tag": "202401011200"}`), &rec))
	assert.Equal(t, registry.ID("42"), rec.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"id": "9b1d", "date_tag": "202401011200"}`), &rec))
	assert.Equal(t, registry.ID("9b1d"), rec.ID)

	var ev registry.Event
	require.NoError(t, json.Unmarshal([]byte(`{"message_id": null, "content": "c"}`), &ev))
	assert.Equal(t, registry.ID(""), ev.MessageID)
}
