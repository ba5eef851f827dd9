// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

// Command genai-o11y uploads inline GenAI media to Cloud Storage and
// translates OpenTelemetry log records into Cloud Logging entries.
package main

import (
	"context"
	"os"
	"syscall"

	"github.com/z5labs/genai-o11y"
)

func main() {
	cmd := newRootCmd(os.Stdout, os.Stderr)

	app := o11y.NotifyOnSignal(
		o11y.AppFunc(cmd.ExecuteContext),
		os.Interrupt,
		syscall.SIGTERM,
	)
	err := app.Run(context.Background())
	if err != nil {
		os.Exit(1)
	}
}
