// Copyright 2023 Google LLC
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

// Package internal provides support for the cloud packages.
//
// Users should not import this package directly.
package internal

import (
	"fmt"
	"net/http"
)

// Version is the current tagged release of the module.
const Version = "0.1.0"

const defaultUserAgent = "gcloud-go/" + Version

// Transport is an http.RoundTripper that appends the module's user agent to
// the original request's User-Agent header before delegating to the base
// round tripper.
type Transport struct {
	// Base is the round tripper requests are delegated to. If nil,
	// http.DefaultTransport is used.
	Base http.RoundTripper
	// UserAgent is appended alongside the module's own user agent. Optional.
	UserAgent string
}

// RoundTrip implements http.RoundTripper. Per the RoundTripper contract the
// original request is never modified.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req2 := req.Clone(req.Context())
	ua := req2.Header.Get("User-Agent")
	for _, part := range []string{t.UserAgent, defaultUserAgent} {
		if part == "" {
			continue
		}
		if ua == "" {
			ua = part
		} else {
			ua = fmt.Sprintf("%s %s", ua, part)
		}
	}
	req2.Header.Set("User-Agent", ua)
	return t.base().RoundTrip(req2)
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}
