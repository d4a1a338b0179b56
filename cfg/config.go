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

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Config is the fully resolved configuration for a cntr invocation, merged
// from defaults, an optional config file and command-line flags, in that
// order of increasing precedence.
type Config struct {
	// EffectiveUser is the username that should own files created on the
	// host side of the mount while attached. Empty means use the uid/gid
	// of the resolved target process.
	EffectiveUser string `yaml:"effective-user" mapstructure:"effective-user"`

	// ContainerTypes restricts probing to the listed runtimes, in the
	// order given. Empty means probe every registered type.
	ContainerTypes []ContainerType `yaml:"container-types" mapstructure:"container-types"`

	Logging LoggingConfig `yaml:"logging" mapstructure:"logging"`
}

type LoggingConfig struct {
	Severity  LogSeverity            `yaml:"severity" mapstructure:"severity"`
	Format    string                 `yaml:"format" mapstructure:"format"`
	FilePath  string                 `yaml:"file" mapstructure:"file"`
	LogRotate LogRotateLoggingConfig `yaml:"log-rotate" mapstructure:"log-rotate"`
}

type LogRotateLoggingConfig struct {
	MaxFileSizeMb   int  `yaml:"max-file-size-mb" mapstructure:"max-file-size-mb"`
	BackupFileCount int  `yaml:"backup-file-count" mapstructure:"backup-file-count"`
	Compress        bool `yaml:"compress" mapstructure:"compress"`
}

// BindFlags registers every cntr flag on flagSet and binds it into viper
// under the dotted key matching Config's yaml tags, so a config file and
// flags populate the same namespace.
func BindFlags(flagSet *pflag.FlagSet) error {
	var err error

	flagSet.StringP("effective-user", "", "", "Username that should own new files created on the host side of the mount.")
	if err = viper.BindPFlag("effective-user", flagSet.Lookup("effective-user")); err != nil {
		return err
	}

	flagSet.StringSliceP("type", "t", nil, "Restrict container probing to these types (process_id|docker|containerd|runc|nspawn).")
	if err = viper.BindPFlag("container-types", flagSet.Lookup("type")); err != nil {
		return err
	}

	flagSet.StringP("log-severity", "", string(DefaultLogSeverity), "Logging severity: TRACE, DEBUG, INFO, WARNING, ERROR, OFF.")
	if err = viper.BindPFlag("logging.severity", flagSet.Lookup("log-severity")); err != nil {
		return err
	}

	flagSet.StringP("log-format", "", DefaultLogFormat, "Log line format: text or json.")
	if err = viper.BindPFlag("logging.format", flagSet.Lookup("log-format")); err != nil {
		return err
	}

	flagSet.StringP("log-file", "", "", "Write logs to this file instead of stderr.")
	if err = viper.BindPFlag("logging.file", flagSet.Lookup("log-file")); err != nil {
		return err
	}

	flagSet.IntP("log-max-file-size-mb", "", 512, "Rotate the log file once it exceeds this size.")
	if err = viper.BindPFlag("logging.log-rotate.max-file-size-mb", flagSet.Lookup("log-max-file-size-mb")); err != nil {
		return err
	}

	flagSet.IntP("log-backup-file-count", "", 10, "Number of rotated log files to retain. 0 retains all.")
	if err = viper.BindPFlag("logging.log-rotate.backup-file-count", flagSet.Lookup("log-backup-file-count")); err != nil {
		return err
	}

	flagSet.BoolP("log-compress", "", true, "Gzip-compress rotated log files.")
	if err = viper.BindPFlag("logging.log-rotate.compress", flagSet.Lookup("log-compress")); err != nil {
		return err
	}

	return nil
}
