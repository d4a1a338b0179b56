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
	"github.com/spf13/cobra"

	"github.com/cntrtool/cntr/internal/attach"
)

var execCmd = &cobra.Command{
	Use:                "exec [command] [arguments...]",
	Short:              "Run a command under the current namespaces, dropping privileges first",
	Args:               cobra.ArbitraryArgs,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkConfigErrors(); err != nil {
			return err
		}
		var command string
		var arguments []string
		if len(args) > 0 {
			command = args[0]
			arguments = args[1:]
		}
		return attach.ExecInPlace(command, arguments)
	},
}
