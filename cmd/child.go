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

// childCmd is never shown in --help and never invoked by a user
// directly; attach.Run re-execs the cntr binary with this as argv[1] to
// get a fresh process it can join the target's namespaces in, since the
// process serving CntrFs over the host root must never itself chroot.
var childCmd = &cobra.Command{
	Use:                attach.ChildEntrypoint,
	Hidden:             true,
	DisableFlagParsing: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return attach.RunChild()
	},
}

func init() {
	rootCmd.AddCommand(childCmd)
}
