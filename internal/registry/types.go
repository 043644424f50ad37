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

package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Processing states understood by downstream consumers. The registry accepts
// other values too; those are carried through untouched.
const (
	StatusProcessing  = "processing"
	StatusDownloading = "downloading"
	StatusReady       = "ready"
)

// ID is an opaque registry identifier. The registry may hand it out as a JSON
// number or a string; it is kept in its textual form either way.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("registry id: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// MissionConfig is a mission's entry in /configuration/.
type MissionConfig struct {
	SatelliteMission string            `json:"satellite_mission"`
	FolderLocations  map[string]string `json:"folder_locations"`
	FTPServer        string            `json:"ftp_server"`
	FTPPort          int               `json:"ftp_port"`
	FTPUserName      string            `json:"ftp_user_name"`
	FTPPassword      string            `json:"ftp_password"`
}

// ProcessedRecord is the processing state of one (mission, date tag) batch.
type ProcessedRecord struct {
	ID               ID       `json:"id,omitempty"`
	SatelliteMission string   `json:"satellite_mission"`
	Status           string   `json:"status"`
	DateTag          string   `json:"date_tag"`
	Files            []string `json:"files"`
}

// ProcessedQuery filters /data/. Empty fields are not sent.
type ProcessedQuery struct {
	SatelliteMission string
	Status           string
	DateTag          string
}

// Event is an entry of the registry's event log.
type Event struct {
	ID          ID     `json:"id,omitempty"`
	MessageID   ID     `json:"message_id,omitempty"`
	QueueName   string `json:"queue_name"`
	Content     string `json:"content"`
	ServiceName string `json:"service_name"`
	ProducerIP  string `json:"producer_ip"`
}

// NewEvent is the body of an event creation request.
type NewEvent struct {
	QueueName   string `json:"queue_name"`
	Content     string `json:"content"`
	ServiceName string `json:"service_name"`
	ProducerIP  string `json:"producer_ip"`
}

type processedWrite struct {
	SatelliteMission string   `json:"satellite_mission"`
	Status           string   `json:"status"`
	DateTag          string   `json:"date_tag"`
	Files            []string `json:"files"`
}

type createdEvent struct {
	MessageID ID `json:"message_id"`
}
