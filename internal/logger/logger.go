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

// Package logger provides cntr's leveled logger: five severities on top
// of log/slog, a text or JSON line format, and optional file output with
// lumberjack rotation.
package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/cntrtool/cntr/cfg"
)

// Severity levels are spaced 4 apart, matching slog's own convention of
// leaving room between Info/Warn/Error, with Trace below Debug and Off
// above Error so it suppresses every record.
const (
	LevelTrace slog.Level = -8
	LevelDebug slog.Level = slog.LevelDebug
	LevelInfo  slog.Level = slog.LevelInfo
	LevelWarn  slog.Level = slog.LevelWarn
	LevelError slog.Level = slog.LevelError
	LevelOff   slog.Level = 12
)

var levelNames = map[slog.Leveler]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARNING",
	LevelError: "ERROR",
}

type loggerFactory struct {
	file      *lumberjack.Logger
	sysWriter io.Writer
	format    string
	level     cfg.LogSeverity
}

func (f *loggerFactory) writer() io.Writer {
	if f.file != nil {
		return f.file
	}
	if f.sysWriter != nil {
		return f.sysWriter
	}
	return os.Stderr
}

// createJsonOrTextHandler builds the slog.Handler used for every
// logger.* call, formatting the record the way cntr has always printed
// it: time="..." severity=LEVEL message="..." for text, or a nested
// timestamp object for JSON.
func (f *loggerFactory) createJsonOrTextHandler(w io.Writer, programLevel *slog.LevelVar, prefix string) slog.Handler {
	replace := func(groups []string, a slog.Attr) slog.Attr {
		switch a.Key {
		case slog.LevelKey:
			level := a.Value.Any().(slog.Level)
			name, ok := levelNames[level]
			if !ok {
				name = level.String()
			}
			a.Key = "severity"
			a.Value = slog.StringValue(name)
		case slog.TimeKey:
			if f.format == "json" {
				t := a.Value.Time()
				a.Key = "timestamp"
				a.Value = slog.GroupValue(
					slog.Int64("seconds", t.Unix()),
					slog.Int64("nanos", int64(t.Nanosecond())),
				)
			} else {
				a.Value = slog.StringValue(a.Value.Time().Format("01/02/2006 15:04:05.000000"))
			}
		case slog.MessageKey:
			a.Key = "message"
			a.Value = slog.StringValue(prefix + a.Value.String())
		}
		return a
	}
	opts := &slog.HandlerOptions{Level: programLevel, ReplaceAttr: replace}
	if f.format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

var (
	defaultLoggerFactory = &loggerFactory{format: "json", level: cfg.InfoLogSeverity}
	programLevel         = new(slog.LevelVar)
	defaultLogger        = slog.New(defaultLoggerFactory.createJsonOrTextHandler(os.Stderr, programLevel, ""))
)

func setLoggingLevel(level cfg.LogSeverity, v *slog.LevelVar) {
	switch level {
	case cfg.TraceLogSeverity:
		v.Set(LevelTrace)
	case cfg.DebugLogSeverity:
		v.Set(LevelDebug)
	case cfg.WarningLogSeverity:
		v.Set(LevelWarn)
	case cfg.ErrorLogSeverity:
		v.Set(LevelError)
	case cfg.OffLogSeverity:
		v.Set(LevelOff)
	default:
		v.Set(LevelInfo)
	}
}

// Init configures the package-level logger from a resolved LoggingConfig,
// opening FilePath through lumberjack for rotation when set.
func Init(cfg cfg.LoggingConfig) error {
	factory := &loggerFactory{format: cfg.Format, level: cfg.Severity}
	switch {
	case cfg.FilePath != "":
		factory.file = &lumberjack.Logger{
			Filename:   cfg.FilePath,
			MaxSize:    cfg.LogRotate.MaxFileSizeMb,
			MaxBackups: cfg.LogRotate.BackupFileCount,
			Compress:   cfg.LogRotate.Compress,
		}
	case journalAvailable():
		factory.sysWriter = journalWriter{}
	}
	setLoggingLevel(cfg.Severity, programLevel)
	defaultLoggerFactory = factory
	defaultLogger = slog.New(factory.createJsonOrTextHandler(factory.writer(), programLevel, ""))
	return nil
}

// SetLogFormat switches the active handler's line format without
// touching the destination or level, defaulting to json for an
// unrecognized value just like the handler constructor does.
func SetLogFormat(format string) {
	defaultLoggerFactory.format = format
	defaultLogger = slog.New(defaultLoggerFactory.createJsonOrTextHandler(defaultLoggerFactory.writer(), programLevel, ""))
}

func logf(ctx context.Context, level slog.Level, format string, v ...interface{}) {
	if !defaultLogger.Enabled(ctx, level) {
		return
	}
	defaultLogger.Log(ctx, level, fmt.Sprintf(format, v...))
}

func Tracef(format string, v ...interface{}) { logf(context.Background(), LevelTrace, format, v...) }
func Debugf(format string, v ...interface{}) { logf(context.Background(), LevelDebug, format, v...) }
func Infof(format string, v ...interface{})  { logf(context.Background(), LevelInfo, format, v...) }
func Warnf(format string, v ...interface{})  { logf(context.Background(), LevelWarn, format, v...) }
func Errorf(format string, v ...interface{}) { logf(context.Background(), LevelError, format, v...) }
