/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import "errors"

// Failure taxonomy of the gateway. Callers match with errors.Is; no operation
// here retries internally.
var (
	// ErrStorageUnavailable means the embedded engine could not be opened or
	// migrated. Every gateway operation attempted afterwards is doomed.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrWriteRejected means a single write transaction aborted. The store is
	// left in its prior state.
	ErrWriteRejected = errors.New("write rejected")

	// ErrReadRejected means a read transaction or row scan failed.
	ErrReadRejected = errors.New("read rejected")
)
