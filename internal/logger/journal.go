// Copyright 2025 Google LLC
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

	"github.com/coreos/go-systemd/v22/journal"
)

// journalWriter forwards already-formatted log lines to the systemd
// journal instead of stderr, used when cntr runs under systemd (as the
// attach coordinator's privileged helper commonly does) and no explicit
// --log-file was given. Every line goes through at PriInfo; the
// severity is already embedded in the formatted record itself.
type journalWriter struct{}

func (journalWriter) Write(p []byte) (int, error) {
	if err := journal.Send(string(bytes.TrimRight(p, "\n")), journal.PriInfo, nil); err != nil {
		return 0, err
	}
	return len(p), nil
}

// journalAvailable reports whether the systemd journal is reachable
// from this process, mirroring journal.Enabled()'s own check of
// $JOURNAL_STREAM and the journald socket.
func journalAvailable() bool {
	return journal.Enabled()
}
