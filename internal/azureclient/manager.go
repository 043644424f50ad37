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

// Package azureclient builds Azure Storage Queue clients that share one
// credential.
package azureclient

import (
	"context"
	"fmt"
	"sync"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azqueue"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Manager struct {
	cred azcore.TokenCredential

	sync.RWMutex
	clients map[string]*QueueClient
	tracer  trace.Tracer
}

type QueueClient struct {
	QueueClient *azqueue.QueueClient
	Tracer      trace.Tracer
}

// ManagerOption is a functional option for configuring the Manager.
type ManagerOption func(*Manager)

// WithCredential replaces the default credential chain.
func WithCredential(cred azcore.TokenCredential) ManagerOption {
	return func(mgr *Manager) {
		mgr.cred = cred
	}
}

// NewManager initializes the default Azure credential chain unless a
// credential is supplied.
func NewManager(ctx context.Context, opts ...ManagerOption) (*Manager, error) {
	mgr := &Manager{
		clients: make(map[string]*QueueClient),
		tracer:  otel.Tracer("github.com/cardinalhq/satready/internal/azureclient"),
	}
	for _, opt := range opts {
		opt(mgr)
	}
	if mgr.cred == nil {
		cred, err := azidentity.NewDefaultAzureCredential(nil)
		if err != nil {
			return nil, fmt.Errorf("loading Azure credentials: %w", err)
		}
		mgr.cred = cred
	}
	return mgr, nil
}

// GetQueue returns a cached client for the queue at queueURL, for example
// https://account.queue.core.windows.net/ftp-tasks.
func (m *Manager) GetQueue(_ context.Context, queueURL string) (*QueueClient, error) {
	if queueURL == "" {
		return nil, fmt.Errorf("queue url is required")
	}

	m.RLock()
	client, ok := m.clients[queueURL]
	m.RUnlock()
	if ok {
		return client, nil
	}

	m.Lock()
	defer m.Unlock()
	if client, ok = m.clients[queueURL]; ok {
		return client, nil
	}
	qc, err := azqueue.NewQueueClient(queueURL, m.cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue client: %w", err)
	}
	client = &QueueClient{QueueClient: qc, Tracer: m.tracer}
	m.clients[queueURL] = client
	return client, nil
}

// QueueFromConnectionString builds an uncached client from a storage
// connection string, as used with Azurite.
func QueueFromConnectionString(connStr, queue string) (*QueueClient, error) {
	qc, err := azqueue.NewQueueClientFromConnectionString(connStr, queue, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create queue client: %w", err)
	}
	return &QueueClient{
		QueueClient: qc,
		Tracer:      otel.Tracer("github.com/cardinalhq/satready/internal/azureclient"),
	}, nil
}
