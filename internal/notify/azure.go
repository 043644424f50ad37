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

package notify

import (
	"context"
	"fmt"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"

	"github.com/cardinalhq/satready/internal/azureclient"
)

type AzureConfig struct {
	QueueURL         string `mapstructure:"queue_url"`
	ConnectionString string `mapstructure:"connection_string"`
	Queue            string `mapstructure:"queue"`
}

// Azure enqueues notifications on an Azure Storage Queue.
type Azure struct {
	client *azureclient.QueueClient
}

var _ Sender = (*Azure)(nil)

// NewAzure uses the connection string when one is configured and the
// default credential chain with QueueURL otherwise.
func NewAzure(ctx context.Context, cfg AzureConfig) (*Azure, error) {
	if cfg.ConnectionString != "" {
		if cfg.Queue == "" {
			return nil, fmt.Errorf("azure queue is required with a connection string")
		}
		client, err := azureclient.QueueFromConnectionString(cfg.ConnectionString, cfg.Queue)
		if err != nil {
			return nil, err
		}
		return &Azure{client: client}, nil
	}
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("azure queue_url or connection_string is required")
	}
	mgr, err := azureclient.NewManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create Azure manager: %w", err)
	}
	client, err := mgr.GetQueue(ctx, cfg.QueueURL)
	if err != nil {
		return nil, err
	}
	return &Azure{client: client}, nil
}

func (a *Azure) Send(ctx context.Context, msg Message) error {
	_, err := a.client.QueueClient.EnqueueMessage(ctx, string(msg.Body), &azqueue.EnqueueMessageOptions{})
	recordSend(ctx, BackendAzure, err)
	if err != nil {
		return publishErr(BackendAzure, a.client.QueueClient.URL(), err)
	}
	return nil
}

func (a *Azure) Close() error {
	return nil
}
