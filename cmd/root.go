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

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cntrtool/cntr/cfg"
	"github.com/cntrtool/cntr/internal/logger"
)

var (
	cfgFile       string
	bindErr       error
	configFileErr error
	unmarshalErr  error

	// Config is the fully resolved configuration, populated by
	// initConfig before any subcommand's RunE runs.
	Config cfg.Config
)

var rootCmd = &cobra.Command{
	Use:   "cntr",
	Short: "Enter or execute commands in the filesystem of a running container",
	Long: `cntr lets an operator attach a shell or any other host tool to a
running container, regardless of which container runtime started it, by
joining the container's namespaces and exposing both the container's
filesystem and the host's filesystem from inside the attached session.`,
	SilenceUsage: true,
}

// Execute runs the root command, exiting the process on failure the way
// every cobra-based CLI in this codebase does.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "Path to an optional YAML config file.")
	bindErr = cfg.BindFlags(rootCmd.PersistentFlags())
	rootCmd.AddCommand(attachCmd, execCmd)
}

func initConfig() {
	if bindErr != nil {
		return
	}
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		viper.SetConfigType("yaml")
		if err := viper.ReadInConfig(); err != nil {
			configFileErr = fmt.Errorf("error while reading config file: %w", err)
			return
		}
	}
	if err := viper.Unmarshal(&Config, viper.DecodeHook(cfg.DecodeHook())); err != nil {
		unmarshalErr = fmt.Errorf("error while unmarshalling config: %w", err)
		return
	}
	if err := cfg.ValidateConfig(&Config); err != nil {
		unmarshalErr = err
		return
	}
	if err := logger.Init(Config.Logging); err != nil {
		unmarshalErr = fmt.Errorf("error while initializing logger: %w", err)
	}
}

func checkConfigErrors() error {
	if bindErr != nil {
		return bindErr
	}
	if configFileErr != nil {
		return configFileErr
	}
	if unmarshalErr != nil {
		return unmarshalErr
	}
	return nil
}
