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

const (
	// DefaultLogSeverity is used when neither --log-severity nor a config
	// file entry names one.
	DefaultLogSeverity = InfoLogSeverity

	// DefaultLogFormat selects the text handler over JSON unless overridden.
	DefaultLogFormat = "text"

	// MountPointName is the path, relative to the synthesized session
	// root (which serves the host filesystem), at which the container's
	// root filesystem is exposed.
	MountPointName = "var/lib/cntr"
)
