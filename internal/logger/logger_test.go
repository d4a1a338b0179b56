// Copyright 2023 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package logger

import (
	"bytes"
	"log/slog"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"github.com/cntrtool/cntr/cfg"
)

const (
	textTraceString = `^time="[0-9/: .]{26}" severity=TRACE message="TestLogs: www.traceExample.com"`
	textErrorString = `^time="[0-9/: .]{26}" severity=ERROR message="TestLogs: www.errorExample.com"`
	jsonTraceString = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"TRACE","message":"TestLogs: www.traceExample.com"}`
	jsonErrorString = `^{"timestamp":{"seconds":\d{10},"nanos":\d{0,9}},"severity":"ERROR","message":"TestLogs: www.errorExample.com"}`
)

type LoggerTest struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTest))
}

func redirectLogsToGivenBuffer(buf *bytes.Buffer, level cfg.LogSeverity, format string) {
	var v = new(slog.LevelVar)
	factory := &loggerFactory{format: format}
	defaultLogger = slog.New(factory.createJsonOrTextHandler(buf, v, "TestLogs: "))
	setLoggingLevel(level, v)
}

func (t *LoggerTest) TestTraceVisibleAtTraceLevelTextFormat() {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, cfg.TraceLogSeverity, "text")
	Tracef("www.traceExample.com")
	assert.Regexp(t.T(), regexp.MustCompile(textTraceString), buf.String())
}

func (t *LoggerTest) TestTraceSuppressedAtErrorLevel() {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, cfg.ErrorLogSeverity, "text")
	Tracef("www.traceExample.com")
	Errorf("www.errorExample.com")
	assert.Regexp(t.T(), regexp.MustCompile(textErrorString), buf.String())
}

func (t *LoggerTest) TestOffSuppressesEverything() {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, cfg.OffLogSeverity, "text")
	Tracef("www.traceExample.com")
	Errorf("www.errorExample.com")
	assert.Empty(t.T(), buf.String())
}

func (t *LoggerTest) TestJSONFormat() {
	var buf bytes.Buffer
	redirectLogsToGivenBuffer(&buf, cfg.TraceLogSeverity, "json")
	Tracef("www.traceExample.com")
	assert.Regexp(t.T(), regexp.MustCompile(jsonTraceString), buf.String())
	buf.Reset()
	Errorf("www.errorExample.com")
	assert.Regexp(t.T(), regexp.MustCompile(jsonErrorString), buf.String())
}

func (t *LoggerTest) TestSetLoggingLevel() {
	testData := []struct {
		input    cfg.LogSeverity
		expected slog.Level
	}{
		{cfg.TraceLogSeverity, LevelTrace},
		{cfg.DebugLogSeverity, LevelDebug},
		{cfg.InfoLogSeverity, LevelInfo},
		{cfg.WarningLogSeverity, LevelWarn},
		{cfg.ErrorLogSeverity, LevelError},
		{cfg.OffLogSeverity, LevelOff},
	}
	for _, test := range testData {
		v := new(slog.LevelVar)
		setLoggingLevel(test.input, v)
		assert.Equal(t.T(), test.expected, v.Level())
	}
}

func (t *LoggerTest) TestInit() {
	err := Init(cfg.LoggingConfig{Severity: cfg.DebugLogSeverity, Format: "text"})
	assert.NoError(t.T(), err)
	assert.Equal(t.T(), "text", defaultLoggerFactory.format)
	assert.Equal(t.T(), cfg.DebugLogSeverity, defaultLoggerFactory.level)
}
