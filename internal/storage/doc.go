/*
 * Copyright (c) 2026 by the VibeMatch Gallery authors.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements the embedded database gateway.
// It owns the per-library SQLite database at <library>/.vibematch/library.sqlite
// holding the galleries and images collections, runs the versioned schema
// migrations, and provides the transactional primitives (single put, atomic
// batch put, cascading gallery delete, indexed counts) the lifecycle service
// builds on. Referential integrity between images and galleries is an
// application-level contract; the schema carries no foreign-key constraint.
package storage
