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

var attachCmd = &cobra.Command{
	Use:   "attach <container> [command] [arguments...]",
	Short: "Enter a running container, with the host's filesystem at / and the container's at /var/lib/cntr",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := checkConfigErrors(); err != nil {
			return err
		}
		opts := attach.Options{
			ContainerName:  args[0],
			ContainerTypes: Config.ContainerTypes,
			EffectiveUser:  Config.EffectiveUser,
		}
		if len(args) > 1 {
			opts.Command = args[1]
			opts.Arguments = args[2:]
		}
		return attach.Run(cmd.Context(), opts)
	},
}
