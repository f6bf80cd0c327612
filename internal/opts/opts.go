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

// Package opts holds the settings resolved from the root package's client
// options. It exists so that service packages can inspect the resolved
// settings without importing the root package's dial logic.
//
// Users should not import this package directly.
package opts

import (
	"log/slog"
	"net/http"

	"github.com/go-gcloud/gcloud/auth"
	"golang.org/x/oauth2"
)

// DialOpt is the destination every root ClientOption resolves into.
type DialOpt struct {
	// Endpoint overrides the default endpoint for a service.
	Endpoint string
	// Scopes are the OAuth2 scopes tokens are requested with.
	Scopes []string
	// UserAgent is appended to the User-Agent header of every request.
	UserAgent string
	// ProjectID is the cloud project operations are billed against. It may be
	// a sentinel value directing the client to detect the project from the
	// environment.
	ProjectID string

	// TokenProvider, when set, is used as the basis for authentication
	// instead of credential detection.
	TokenProvider auth.TokenProvider
	// TokenSource, when set, bridges an oauth2 token source into the token
	// provider used for authentication.
	TokenSource oauth2.TokenSource
	// CredentialsFile overrides credential detection with the service
	// account file at the given path.
	CredentialsFile string
	// CredentialsJSON overrides credential detection with raw service
	// account JSON.
	CredentialsJSON []byte

	// HTTPClient is a fully formed client to use as the basis of
	// communications, bypassing authentication setup.
	HTTPClient *http.Client
	// Logger is used for debug logging throughout the client stack.
	Logger *slog.Logger
	// NoAuth disables authentication, for use against emulators.
	NoAuth bool
}
