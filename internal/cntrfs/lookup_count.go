// Copyright 2015 Google Inc. All Rights Reserved.
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

package cntrfs

import (
	"fmt"

	"github.com/cntrtool/cntr/internal/logger"
)

// lookupCount implements the kernel's inode lookup-count protocol:
// every LookUpInode reply that names an inode increments it, every
// Forget decrements it by the forget count, and the backing resources
// are released exactly once, when it reaches zero. External
// synchronization (the inode table's mutex) is required: every Inc/Dec
// call, and destroy itself, must run with that mutex already held, so
// the count can never be observed or mutated from two goroutines at once.
type lookupCount struct {
	count   uint64
	destroy func() error
}

func (lc *lookupCount) Inc() {
	lc.count++
}

func (lc *lookupCount) Dec(n uint64) (destroyed bool) {
	if n > lc.count {
		panic(fmt.Sprintf("n is greater than lookup count: %v vs. %v", n, lc.count))
	}
	lc.count -= n
	if lc.count == 0 {
		if err := lc.destroy(); err != nil {
			logger.Warnf("cntrfs: error destroying inode: %v", err)
		}
		destroyed = true
	}
	return
}
