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
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/smithy-go"

	"github.com/cardinalhq/satready/internal/awsclient"
	"github.com/cardinalhq/satready/internal/logctx"
)

type SQSConfig struct {
	QueueURL string `mapstructure:"queue_url"`
	Region   string `mapstructure:"region"`
	RoleARN  string `mapstructure:"role_arn"`
	Endpoint string `mapstructure:"endpoint"`
}

// SQSAPI is the part of the SQS client used for sending.
type SQSAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type SQS struct {
	queueURL string
	client   SQSAPI
}

var _ Sender = (*SQS)(nil)

func NewSQS(ctx context.Context, cfg SQSConfig) (*SQS, error) {
	if cfg.QueueURL == "" {
		return nil, fmt.Errorf("sqs queue_url is required")
	}
	mgr, err := awsclient.NewManager(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS manager: %w", err)
	}
	var opts []awsclient.SQSOption
	if cfg.RoleARN != "" {
		opts = append(opts, awsclient.WithSQSRole(cfg.RoleARN))
	}
	if cfg.Region != "" {
		opts = append(opts, awsclient.WithSQSRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, awsclient.WithSQSEndpoint(cfg.Endpoint))
	}
	client, err := mgr.GetSQS(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return NewSQSWithClient(cfg.QueueURL, client.Client), nil
}

func NewSQSWithClient(queueURL string, client SQSAPI) *SQS {
	return &SQS{queueURL: queueURL, client: client}
}

func (s *SQS) Send(ctx context.Context, msg Message) error {
	_, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(msg.Body)),
	})
	recordSend(ctx, BackendSQS, err)
	if err != nil {
		var ae smithy.APIError
		if errors.As(err, &ae) {
			logctx.FromContext(ctx).Error("SQS rejected message",
				slog.String("code", ae.ErrorCode()),
				slog.String("fault", ae.ErrorFault().String()))
		}
		return publishErr(BackendSQS, s.queueURL, err)
	}
	return nil
}

func (s *SQS) Close() error {
	return nil
}
