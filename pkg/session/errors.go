/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package session

import "errors"

var (
	// ErrHandshakeFailed wraps connect-phase failures. The device is left
	// in the error status; there is no automatic retry.
	ErrHandshakeFailed = errors.New("device handshake failed")
	// ErrSessionUsed is returned when Connect is called on a session that
	// already ran; sessions are single-use.
	ErrSessionUsed = errors.New("session already used")
	// ErrStopTimeout means the ingestion loop outlived both the grace
	// period and the forced kill.
	ErrStopTimeout = errors.New("capture session did not stop in time")
)
