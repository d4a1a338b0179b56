// Copyright 2024 Google LLC
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

package cfg

import (
	"fmt"
	"strings"
)

// LogSeverity represents the logging severity and can accept the following values
// "TRACE", "DEBUG", "INFO", "WARNING", "ERROR", "OFF"
type LogSeverity string

// Constants for all supported log severities.
const (
	TraceLogSeverity   LogSeverity = "TRACE"
	DebugLogSeverity   LogSeverity = "DEBUG"
	InfoLogSeverity    LogSeverity = "INFO"
	WarningLogSeverity LogSeverity = "WARNING"
	ErrorLogSeverity   LogSeverity = "ERROR"
	OffLogSeverity     LogSeverity = "OFF"
)

// severityRanking maps each level to an integer for validation and comparison.
var severityRanking = map[LogSeverity]int{
	TraceLogSeverity:   0,
	DebugLogSeverity:   1,
	InfoLogSeverity:    2,
	WarningLogSeverity: 3,
	ErrorLogSeverity:   4,
	OffLogSeverity:     5,
}

func (l *LogSeverity) UnmarshalText(text []byte) error {
	level := LogSeverity(strings.ToUpper(string(text)))
	if _, ok := severityRanking[level]; !ok {
		return fmt.Errorf("invalid log severity level: %s. Must be one of [TRACE, DEBUG, INFO, WARNING, ERROR, OFF]", text)
	}
	*l = level
	return nil
}

// Rank returns the integer representation of the severity rank.
// Returns -1 if the severity is unknown.
func (l LogSeverity) Rank() int {
	if rank, ok := severityRanking[l]; ok {
		return rank
	}
	return -1
}

// ContainerType names one of the runtimes the probe registry knows how to
// inspect. It is accepted both as a CLI --type value and in a config file.
type ContainerType string

const (
	ContainerTypeProcessID  ContainerType = "process_id"
	ContainerTypeDocker     ContainerType = "docker"
	ContainerTypeContainerd ContainerType = "containerd"
	ContainerTypeRunc       ContainerType = "runc"
	ContainerTypeNspawn     ContainerType = "nspawn"
)

// AvailableContainerTypes lists every type accepted by --type, in probe order.
var AvailableContainerTypes = []ContainerType{
	ContainerTypeContainerd,
	ContainerTypeDocker,
	ContainerTypeRunc,
	ContainerTypeNspawn,
	ContainerTypeProcessID,
}

func (c *ContainerType) UnmarshalText(text []byte) error {
	candidate := ContainerType(strings.ToLower(string(text)))
	for _, t := range AvailableContainerTypes {
		if t == candidate {
			*c = candidate
			return nil
		}
	}
	return fmt.Errorf("invalid container type %q; valid values are: %v", text, AvailableContainerTypes)
}
