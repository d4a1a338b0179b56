// Copyright 2024 Google Inc. All Rights Reserved.
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

import "fmt"

func isValidLogRotateConfig(config *LogRotateLoggingConfig) error {
	if config.MaxFileSizeMb <= 0 {
		return fmt.Errorf("log-max-file-size-mb should be at least 1")
	}
	if config.BackupFileCount < 0 {
		return fmt.Errorf("log-backup-file-count should be 0 (retain all) or a positive value")
	}
	return nil
}

func isValidLogSeverity(s LogSeverity) error {
	if s.Rank() < 0 {
		return fmt.Errorf("invalid log-severity %q", s)
	}
	return nil
}

func isValidLogFormat(f string) error {
	if f != "text" && f != "json" {
		return fmt.Errorf("invalid log-format %q, must be text or json", f)
	}
	return nil
}

// ValidateConfig returns a non-nil error if the config is invalid.
func ValidateConfig(config *Config) error {
	if err := isValidLogRotateConfig(&config.Logging.LogRotate); err != nil {
		return fmt.Errorf("error parsing log-rotate config: %w", err)
	}
	if err := isValidLogSeverity(config.Logging.Severity); err != nil {
		return err
	}
	if err := isValidLogFormat(config.Logging.Format); err != nil {
		return err
	}
	return nil
}
