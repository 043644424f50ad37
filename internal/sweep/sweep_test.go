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

package sweep_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/satready/internal/catalog"
	"github.com/cardinalhq/satready/internal/dedup"
	"github.com/cardinalhq/satready/internal/eventpub"
	"github.com/cardinalhq/satready/internal/notify"
	"github.com/cardinalhq/satready/internal/notify/notifytest"
	"github.com/cardinalhq/satready/internal/registry"
	"github.com/cardinalhq/satready/internal/registry/registrytest"
	"github.com/cardinalhq/satready/internal/remote"
	"github.com/cardinalhq/satready/internal/remote/remotetest"
	"github.com/cardinalhq/satready/internal/scanner"
	"github.com/cardinalhq/satready/internal/sweep"
)

const readyContent = `{"status": "ready", "mission": "GOES16", "date": "202401011200", "event_id": null}`

type harness struct {
	srv    *registrytest.Server
	host   *remotetest.Host
	sender *notifytest.Sender
	cat    *catalog.Catalog
	sweep  *sweep.Sweeper
}

func mission(name string, folders ...string) registry.MissionConfig {
	locs := map[string]string{}
	for i, f := range folders {
		locs["role"+string(rune('a'+i))] = f
	}
	return registry.MissionConfig{
		SatelliteMission: name,
		FolderLocations:  locs,
		FTPServer:        "ftp.example.com",
		FTPPort:          21,
		FTPUserName:      "user",
		FTPPassword:      "secret",
	}
}

func newHarness(t *testing.T, mode dedup.Mode) *harness {
	t.Helper()
	srv := registrytest.New()
	t.Cleanup(srv.Close)

	client := registry.NewClient(registry.Config{URL: srv.BaseURL()})
	cat := catalog.New(client, time.Minute)
	t.Cleanup(cat.Close)

	host := remotetest.NewHost()
	sender := &notifytest.Sender{}
	pub := eventpub.New(client, sender, eventpub.Config{ProducerIP: "10.1.2.3"})

	return &harness{
		srv:    srv,
		host:   host,
		sender: sender,
		cat:    cat,
		sweep:  sweep.New(cat, scanner.New(host.Dialer()), client, dedup.NewGate(client, mode), pub),
	}
}

// goes16 lays out one complete and one incomplete batch.
func (h *harness) goes16() {
	h.srv.AddMission(mission("GOES16", "raw", "processed"))
	h.host.AddFile("/GOES16/202401011200/raw/a.nc", "a")
	h.host.AddFile("/GOES16/202401011200/raw/b.nc", "b")
	h.host.AddFile("/GOES16/202401011200/processed/c.tif", "c")
	h.host.AddFile("/GOES16/202401011300/raw/x.nc", "x")
}

func TestRun_EndToEnd(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()

	sum, err := h.sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Missions)
	assert.Equal(t, 1, sum.BatchesReady)
	assert.Equal(t, 1, sum.Published)
	assert.NotEmpty(t, sum.ID)

	records := h.srv.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "GOES16", records[0].SatelliteMission)
	assert.Equal(t, registry.StatusReady, records[0].Status)
	assert.Equal(t, "202401011200", records[0].DateTag)
	assert.ElementsMatch(t, []string{
		"/GOES16/202401011200/raw/a.nc",
		"/GOES16/202401011200/raw/b.nc",
		"/GOES16/202401011200/processed/c.tif",
	}, records[0].Files)

	events := h.srv.Events()
	require.Len(t, events, 1)
	assert.Equal(t, readyContent, events[0].Content)
	assert.Equal(t, "ftp-tasks", events[0].QueueName)
	assert.Equal(t, "FTP Checker", events[0].ServiceName)
	assert.Equal(t, "10.1.2.3", events[0].ProducerIP)

	sent := h.sender.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "GOES16", sent[0].Key)
	assert.JSONEq(t,
		`{"status":"ready","mission":"GOES16","date":"202401011200","event_id":"`+events[0].MessageID.String()+`"}`,
		string(sent[0].Body))

	assert.Equal(t, 0, h.host.OpenSessions(), "mission session closed")
}

func TestRun_RerunPublishesOnce(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()

	_, err := h.sweep.Run(context.Background())
	require.NoError(t, err)

	sum, err := h.sweep.Run(context.Background())
	require.NoError(t, err)

	// A record left in "ready" does not exclude the batch, so it is
	// re-upserted and stopped by the duplicate check.
	assert.Equal(t, 0, sum.BatchesExcluded)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Equal(t, 0, sum.Published)
	assert.Len(t, h.srv.Records(), 1)
	assert.Equal(t, 2, h.srv.Calls("update-data")+h.srv.Calls("create-data"))
	assert.Len(t, h.srv.Events(), 1)
	assert.Len(t, h.sender.Sent(), 1)
}

func TestRun_FinishedRecordExcludesBatch(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()
	h.srv.AddRecord(registry.ProcessedRecord{
		SatelliteMission: "GOES16",
		Status:           "processed",
		DateTag:          "202401011200",
		Files:            []string{"old"},
	})

	sum, err := h.sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.BatchesExcluded)
	assert.Equal(t, 0, sum.Published)
	assert.Equal(t, 0, h.srv.Calls("update-data")+h.srv.Calls("create-data"))
	assert.Equal(t, []string{"old"}, h.srv.Records()[0].Files)
	assert.Empty(t, h.sender.Sent())
}

func TestRun_InProgressRecordDoesNotExclude(t *testing.T) {
	for _, status := range []string{registry.StatusProcessing, registry.StatusDownloading} {
		t.Run(status, func(t *testing.T) {
			h := newHarness(t, dedup.ModeContent)
			h.goes16()
			h.srv.AddRecord(registry.ProcessedRecord{SatelliteMission: "GOES16", Status: status, DateTag: "202401011200"})

			sum, err := h.sweep.Run(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, sum.Published)

			records := h.srv.Records()
			require.Len(t, records, 1)
			assert.Equal(t, registry.StatusReady, records[0].Status, "record overwritten")
		})
	}
}

func TestRun_InvalidMissionSkipped(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.srv.AddMission(mission("EMPTY"))
	h.goes16()

	sum, err := h.sweep.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrInvalidMission)
	assert.Equal(t, 2, sum.Missions)
	assert.Equal(t, 1, sum.MissionsFailed)
	assert.Equal(t, 1, sum.Published)
}

func TestRun_TransportFailureSkipsMission(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()
	h.srv.AddMission(mission("AQUA", "l0"))
	h.host.AddDir("/AQUA/202401020000/l0")
	h.host.FailList("/GOES16", errors.New("421 service not available"))

	sum, err := h.sweep.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, remote.ErrTransport)
	assert.Equal(t, 1, sum.MissionsFailed)
	assert.Equal(t, 1, sum.Published)

	bodies := h.sender.Bodies()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], `"mission":"AQUA"`)
	assert.Equal(t, 0, h.host.OpenSessions())
}

func TestRun_DialFailureSkipsMission(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()
	h.host.FailDial(errors.New("connection refused"))

	sum, err := h.sweep.Run(context.Background())
	assert.ErrorIs(t, err, remote.ErrTransport)
	assert.Equal(t, 1, sum.MissionsFailed)
	assert.Empty(t, h.srv.Records())
}

func TestRun_PublishFailureIsBatchScoped(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()
	h.host.AddDir("/GOES16/202401011300/processed")
	h.sender.Fail(errors.New("channel closed"))

	sum, err := h.sweep.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, notify.ErrPublish)
	assert.Equal(t, 2, sum.BatchesReady)
	assert.Equal(t, 2, sum.BatchesFailed)
	assert.Len(t, h.srv.Events(), 2, "both batches attempted")
	assert.Empty(t, h.sender.Sent())
}

func TestRun_CreateEventFailureSkipsPublish(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()
	h.srv.FailRoute("create-event", http.StatusInternalServerError)

	sum, err := h.sweep.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, registry.ErrRegistryUnavailable)
	assert.Equal(t, 1, sum.BatchesFailed)
	assert.Empty(t, h.sender.Sent())
	assert.Len(t, h.srv.Records(), 1, "ready record written before the event")
}

func TestRun_EventLogFailureSkipsBatch(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()
	h.srv.FailRoute("list-events", http.StatusBadGateway)

	_, err := h.sweep.Run(context.Background())
	require.ErrorIs(t, err, registry.ErrRegistryUnavailable)
	assert.Zero(t, h.srv.Calls("create-event"))
	assert.Empty(t, h.sender.Sent())
}

func TestRun_CanonicalModeMatchesReformattedEvent(t *testing.T) {
	h := newHarness(t, dedup.ModeCanonical)
	h.goes16()
	h.srv.AddEvent(registry.Event{
		QueueName: "ftp-tasks",
		Content:   `{"status":"ready","mission":"GOES16","date":"202401011200","event_id":null}`,
	})

	sum, err := h.sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Duplicates)
	assert.Empty(t, h.sender.Sent())
}

func TestRun_ContentModeMissesReformattedEvent(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()
	h.srv.AddEvent(registry.Event{
		QueueName: "ftp-tasks",
		Content:   `{"status":"ready","mission":"GOES16","date":"202401011200","event_id":null}`,
	})

	sum, err := h.sweep.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Published)
}

func TestRun_NamedMissions(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()
	h.srv.AddMission(mission("AQUA", "l0"))
	h.host.AddDir("/AQUA/202401020000/l0")

	sum, err := h.sweep.Run(context.Background(), "AQUA", "NOPE")
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrInvalidMission)
	assert.Equal(t, 2, sum.Missions)
	assert.Equal(t, 1, sum.Published)
	assert.Len(t, h.host.Dials(), 1)
}

func TestRun_NamedMissionsSeeNewConfiguration(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()
	h.host.AddDir("/AQUA/202401020000/l0")

	_, err := h.sweep.Run(context.Background(), "GOES16", "AQUA")
	require.ErrorIs(t, err, catalog.ErrInvalidMission, "AQUA is not configured yet")

	h.srv.AddMission(mission("AQUA", "l0"))
	sum, err := h.sweep.Run(context.Background(), "GOES16", "AQUA")
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Missions)
	assert.Zero(t, sum.MissionsFailed)
	assert.Equal(t, 2, h.srv.Calls("list-configuration"))
}

func TestRun_ListMissionsFailure(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.srv.FailRoute("list-configuration", http.StatusServiceUnavailable)

	sum, err := h.sweep.Run(context.Background())
	require.ErrorIs(t, err, registry.ErrRegistryUnavailable)
	assert.Zero(t, sum.Missions)
}

func TestRun_Cancelled(t *testing.T) {
	h := newHarness(t, dedup.ModeContent)
	h.goes16()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.sweep.Run(ctx, "GOES16")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.host.Dials())
}

func TestExcludedDates(t *testing.T) {
	records := []registry.ProcessedRecord{
		{DateTag: "202401010000", Status: registry.StatusProcessing},
		{DateTag: "202401010100", Status: registry.StatusDownloading},
		{DateTag: "202401010200", Status: registry.StatusReady},
		{DateTag: "202401010300", Status: "processed"},
		{DateTag: "202401010400", Status: ""},
	}
	got := sweep.ExcludedDates(records)
	assert.ElementsMatch(t, []string{"202401010300", "202401010400"}, got.ToSlice())
}
