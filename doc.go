// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Package o11y wires GenAI observability adapters for Google Cloud.
//
// Two independent pipelines live in sub packages:
//
//   - media: uploads inline media payloads to Cloud Storage and returns
//     the object URI to reference from spans.
//   - cloudlogging: translates OpenTelemetry log records into Cloud Logging
//     entries and exports them.
//
// This package loads a [Config] from an embedded default YAML template,
// rendered with environment variables, merged with any user sources, and
// builds the components it describes.
//
// # Basic Usage
//
//	err := o11y.Run(ctx, o11y.AppBuilderFunc[o11y.Config](func(ctx context.Context, cfg o11y.Config) (o11y.App, error) {
//	    u, err := o11y.NewUploader(ctx, cfg)
//	    if err != nil {
//	        return nil, err
//	    }
//	    return myApp{uploader: u}, nil
//	}))
package o11y
