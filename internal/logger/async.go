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
	"fmt"
	"io"
	"os"
)

// AsyncLogger decouples a noisy writer (the FUSE library's own debug
// log, forwarded across the mount-namespace IPC pipe) from its
// destination, so a slow disk never blocks request handling. Writes
// past the buffer capacity are dropped rather than applying backpressure.
type AsyncLogger struct {
	dest   io.WriteCloser
	lines  chan []byte
	done   chan struct{}
	closed chan struct{}
}

// NewAsyncLogger starts a goroutine draining up to bufferSize pending
// writes into dest.
func NewAsyncLogger(dest io.WriteCloser, bufferSize int) *AsyncLogger {
	a := &AsyncLogger{
		dest:   dest,
		lines:  make(chan []byte, bufferSize),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go a.run()
	return a
}

func (a *AsyncLogger) run() {
	defer close(a.closed)
	for {
		select {
		case line, ok := <-a.lines:
			if !ok {
				return
			}
			if _, err := a.dest.Write(line); err != nil {
				fmt.Fprintf(os.Stderr, "asynclogger: write failed: %v\n", err)
			}
		case <-a.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case line := <-a.lines:
					a.dest.Write(line)
				default:
					return
				}
			}
		}
	}
}

// Write implements io.Writer. p is copied since the caller's buffer is
// reused.
func (a *AsyncLogger) Write(p []byte) (int, error) {
	line := make([]byte, len(p))
	copy(line, p)
	select {
	case a.lines <- line:
	default:
		fmt.Fprintln(os.Stderr, "asynclogger: log buffer is full, dropping message.")
	}
	return len(p), nil
}

// Close stops the drain goroutine after it has flushed what's queued,
// and closes the underlying destination. Writes made after Close are
// not delivered.
func (a *AsyncLogger) Close() error {
	close(a.done)
	<-a.closed
	return a.dest.Close()
}
