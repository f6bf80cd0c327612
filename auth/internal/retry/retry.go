// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package retry provides a bounded retry policy for token exchange requests.
package retry

import (
	"io"
	"math/rand"
	"net/http"
	"time"
)

// maxRetryAttempts is the maximum number of times a request is retried.
const maxRetryAttempts = 5

// New returns a Retryer with the default backoff settings.
func New() *Retryer {
	return &Retryer{
		bo: &defaultBackoff{
			cur: 100 * time.Millisecond,
			max: 30 * time.Second,
			mul: 2,
		},
	}
}

// Retryer decides whether a request should be retried, and if so how long to
// pause first. It is not safe for concurrent use.
type Retryer struct {
	bo       *defaultBackoff
	attempts int
}

// Retry reports whether a request that resulted in the given response status
// and error should be retried, along with the pause duration before the next
// attempt.
func (r *Retryer) Retry(status int, err error) (time.Duration, bool) {
	if !shouldRetry(status, err) {
		return 0, false
	}
	if r.attempts >= maxRetryAttempts {
		return 0, false
	}
	r.attempts++
	return r.bo.Pause(), true
}

func shouldRetry(status int, err error) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	if 500 <= status && status <= 599 {
		return true
	}
	if err == io.ErrUnexpectedEOF {
		return true
	}
	if err, ok := err.(interface{ Temporary() bool }); ok {
		if err.Temporary() {
			return true
		}
	}
	if err, ok := err.(interface{ Unwrap() error }); ok {
		return shouldRetry(status, err.Unwrap())
	}
	return false
}

type defaultBackoff struct {
	max time.Duration
	mul float64
	cur time.Duration
}

// Pause returns a jittered duration of at most the current backoff interval
// and advances the interval for the next call.
func (b *defaultBackoff) Pause() time.Duration {
	d := time.Duration(1 + rand.Int63n(int64(b.cur)))
	b.cur = time.Duration(float64(b.cur) * b.mul)
	if b.cur > b.max {
		b.cur = b.max
	}
	return d
}
