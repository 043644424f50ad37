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

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

type GCPConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	TopicID         string `mapstructure:"topic_id"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// GCP publishes to a Pub/Sub topic and waits for the server to accept
// each message.
type GCP struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

var _ Sender = (*GCP)(nil)

func NewGCP(ctx context.Context, cfg GCPConfig, opts ...option.ClientOption) (*GCP, error) {
	if cfg.ProjectID == "" {
		return nil, fmt.Errorf("gcp project_id is required")
	}
	if cfg.TopicID == "" {
		return nil, fmt.Errorf("gcp topic_id is required")
	}
	// ADC covers GCE and Cloud Run when no key file is configured.
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.TopicID)
	topic.EnableMessageOrdering = true
	return &GCP{client: client, topic: topic}, nil
}

func (g *GCP) Send(ctx context.Context, msg Message) error {
	res := g.topic.Publish(ctx, &pubsub.Message{Data: msg.Body, OrderingKey: msg.Key})
	_, err := res.Get(ctx)
	recordSend(ctx, BackendGCP, err)
	if err != nil {
		if msg.Key != "" {
			g.topic.ResumePublish(msg.Key)
		}
		return publishErr(BackendGCP, g.topic.ID(), err)
	}
	return nil
}

func (g *GCP) Close() error {
	g.topic.Stop()
	return g.client.Close()
}
