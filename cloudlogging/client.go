// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cloudlogging

import (
	"context"

	vkit "cloud.google.com/go/logging/apiv2"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
)

var _ Writer = (*vkit.Client)(nil)

// NewClient returns a Cloud Logging client with gRPC calls instrumented by
// OpenTelemetry. opts are applied after the defaults.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*vkit.Client, error) {
	opts = append([]option.ClientOption{
		option.WithGRPCDialOption(grpc.WithStatsHandler(otelgrpc.NewClientHandler())),
	}, opts...)
	return vkit.NewClient(ctx, opts...)
}
