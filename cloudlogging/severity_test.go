// Copyright (c) 2024 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package cloudlogging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/log"
	ltype "google.golang.org/genproto/googleapis/logging/type"
	"pgregory.net/rapid"
)

func TestSeverityFromNumber(t *testing.T) {
	t.Run("will map each severity range to a single level", func(t *testing.T) {
		testCases := []struct {
			Name     string
			Number   log.Severity
			Expected ltype.LogSeverity
		}{
			{Name: "undefined", Number: log.SeverityUndefined, Expected: ltype.LogSeverity_DEFAULT},
			{Name: "trace", Number: log.SeverityTrace1, Expected: ltype.LogSeverity_DEBUG},
			{Name: "trace4", Number: log.SeverityTrace4, Expected: ltype.LogSeverity_DEBUG},
			{Name: "debug", Number: log.SeverityDebug1, Expected: ltype.LogSeverity_DEBUG},
			{Name: "debug4", Number: log.SeverityDebug4, Expected: ltype.LogSeverity_DEBUG},
			{Name: "info", Number: log.SeverityInfo1, Expected: ltype.LogSeverity_INFO},
			{Name: "info4", Number: log.SeverityInfo4, Expected: ltype.LogSeverity_INFO},
			{Name: "warn", Number: log.SeverityWarn1, Expected: ltype.LogSeverity_WARNING},
			{Name: "warn4", Number: log.SeverityWarn4, Expected: ltype.LogSeverity_WARNING},
			{Name: "error", Number: log.SeverityError1, Expected: ltype.LogSeverity_ERROR},
			{Name: "error4", Number: log.SeverityError4, Expected: ltype.LogSeverity_ERROR},
			{Name: "fatal", Number: log.SeverityFatal1, Expected: ltype.LogSeverity_CRITICAL},
			{Name: "fatal4", Number: log.SeverityFatal4, Expected: ltype.LogSeverity_CRITICAL},
			{Name: "above fatal", Number: log.SeverityFatal4 + 10, Expected: ltype.LogSeverity_CRITICAL},
			{Name: "negative", Number: -1, Expected: ltype.LogSeverity_DEFAULT},
		}

		for _, testCase := range testCases {
			t.Run(testCase.Name, func(t *testing.T) {
				assert.Equal(t, testCase.Expected, SeverityFromNumber(testCase.Number))
			})
		}
	})

	t.Run("will be monotonic over the whole severity domain", func(t *testing.T) {
		rapid.Check(t, func(t *rapid.T) {
			a := log.Severity(rapid.IntRange(-5, 40).Draw(t, "a"))
			b := log.Severity(rapid.IntRange(int(a), 40).Draw(t, "b"))

			sa := SeverityFromNumber(a)
			sb := SeverityFromNumber(b)
			if sa > sb {
				t.Fatalf("severity %d mapped to %s but higher severity %d mapped to %s", a, sa, b, sb)
			}
			switch sa {
			case ltype.LogSeverity_DEFAULT,
				ltype.LogSeverity_DEBUG,
				ltype.LogSeverity_INFO,
				ltype.LogSeverity_WARNING,
				ltype.LogSeverity_ERROR,
				ltype.LogSeverity_CRITICAL:
			default:
				t.Fatalf("severity %d mapped to unexpected level %s", a, sa)
			}
		})
	})
}

func TestSeverityFromText(t *testing.T) {
	testCases := []struct {
		Text     string
		Expected ltype.LogSeverity
	}{
		{Text: "TRACE", Expected: ltype.LogSeverity_DEBUG},
		{Text: "debug", Expected: ltype.LogSeverity_DEBUG},
		{Text: "Info", Expected: ltype.LogSeverity_INFO},
		{Text: "warn2", Expected: ltype.LogSeverity_WARNING},
		{Text: "ERROR42", Expected: ltype.LogSeverity_ERROR},
		{Text: "fatal", Expected: ltype.LogSeverity_CRITICAL},
		{Text: "warning", Expected: ltype.LogSeverity_DEFAULT},
		{Text: "notice", Expected: ltype.LogSeverity_DEFAULT},
		{Text: "123", Expected: ltype.LogSeverity_DEFAULT},
		{Text: "", Expected: ltype.LogSeverity_DEFAULT},
	}

	for _, testCase := range testCases {
		t.Run("will map "+testCase.Text, func(t *testing.T) {
			assert.Equal(t, testCase.Expected, SeverityFromText(testCase.Text))
		})
	}
}

func TestSeverity(t *testing.T) {
	t.Run("will prefer the severity number", func(t *testing.T) {
		t.Run("if it is defined", func(t *testing.T) {
			assert.Equal(t, ltype.LogSeverity_ERROR, Severity(log.SeverityError, "info"))
		})
	})

	t.Run("will fall back to the severity text", func(t *testing.T) {
		t.Run("if the number is undefined", func(t *testing.T) {
			assert.Equal(t, ltype.LogSeverity_WARNING, Severity(log.SeverityUndefined, "WARN"))
		})
	})
}
