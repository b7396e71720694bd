// Copyright 2025 Poiesic Systems
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


package ai

import "errors"

var (
	// ErrTimeout indicates the model did not answer within the deadline.
	ErrTimeout = errors.New("ai request timed out")

	// ErrRateLimited indicates the provider rejected the request for quota reasons.
	ErrRateLimited = errors.New("ai request rate limited")

	// ErrMalformedResponse indicates the model answered with output that
	// could not be parsed.
	ErrMalformedResponse = errors.New("malformed ai response")

	// ErrUnavailable indicates the provider could not be reached.
	ErrUnavailable = errors.New("ai service unavailable")
)
