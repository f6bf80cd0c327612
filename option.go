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

package gcloud

import (
	"log/slog"
	"net/http"

	"github.com/go-gcloud/gcloud/auth"
	"github.com/go-gcloud/gcloud/internal/opts"
	"golang.org/x/oauth2"
)

// A ClientOption is used when constructing clients for each cloud service.
type ClientOption interface {
	// Resolve applies the option to the given settings. It is exported only
	// so that service packages under this module can resolve options; users
	// should not call it.
	Resolve(*opts.DialOpt)
}

// ResolveOptions applies the given options to a fresh DialOpt. It is meant
// for use by service packages under this module.
func ResolveOptions(opt []ClientOption) *opts.DialOpt {
	return resolve(opt)
}

// WithTokenProvider returns a ClientOption that specifies the token provider
// to be used as the basis for authentication. The provider is wrapped in a
// caching layer shared by every request issued through the client.
func WithTokenProvider(tp auth.TokenProvider) ClientOption {
	return withTokenProvider{tp}
}

type withTokenProvider struct{ tp auth.TokenProvider }

func (w withTokenProvider) Resolve(o *opts.DialOpt) {
	o.TokenProvider = w.tp
}

// WithTokenSource returns a ClientOption that specifies an OAuth2 token
// source to be used as the basis for authentication.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return withTokenSource{ts}
}

type withTokenSource struct{ ts oauth2.TokenSource }

func (w withTokenSource) Resolve(o *opts.DialOpt) {
	o.TokenSource = w.ts
}

// WithCredentialsFile returns a ClientOption that authenticates using the
// service account file at the given path, instead of the default detection
// order.
func WithCredentialsFile(filename string) ClientOption {
	return withCredentialsFile(filename)
}

type withCredentialsFile string

func (w withCredentialsFile) Resolve(o *opts.DialOpt) {
	o.CredentialsFile = string(w)
}

// WithCredentialsJSON returns a ClientOption that authenticates using the
// given service account JSON, instead of the default detection order.
func WithCredentialsJSON(b []byte) ClientOption {
	return withCredentialsJSON(b)
}

type withCredentialsJSON []byte

func (w withCredentialsJSON) Resolve(o *opts.DialOpt) {
	o.CredentialsJSON = make([]byte, len(w))
	copy(o.CredentialsJSON, w)
}

// WithScopes returns a ClientOption that overrides the default OAuth2 scopes
// to be used for a service.
func WithScopes(scope ...string) ClientOption {
	return withScopes(scope)
}

type withScopes []string

func (w withScopes) Resolve(o *opts.DialOpt) {
	o.Scopes = make([]string, len(w))
	copy(o.Scopes, w)
}

// WithEndpoint returns a ClientOption that overrides the default endpoint
// to be used for a service.
func WithEndpoint(url string) ClientOption {
	return withEndpoint(url)
}

type withEndpoint string

func (w withEndpoint) Resolve(o *opts.DialOpt) {
	o.Endpoint = string(w)
}

// WithBaseHTTP returns a ClientOption that specifies the HTTP client to use
// as the basis of communications. When set, the client is used as-is: no
// authentication or user-agent middleware is layered on top of it. This
// option may only be used with services that support HTTP as their
// communication transport.
func WithBaseHTTP(client *http.Client) ClientOption {
	return withBaseHTTP{client}
}

type withBaseHTTP struct{ client *http.Client }

func (w withBaseHTTP) Resolve(o *opts.DialOpt) {
	o.HTTPClient = w.client
}

// WithUserAgent returns a ClientOption that sets the User-Agent reported on
// every request.
func WithUserAgent(ua string) ClientOption {
	return withUserAgent(ua)
}

type withUserAgent string

func (w withUserAgent) Resolve(o *opts.DialOpt) {
	o.UserAgent = string(w)
}

// WithLogger returns a ClientOption that specifies the logger used for debug
// logging throughout the client. By default logging is disabled.
func WithLogger(l *slog.Logger) ClientOption {
	return withLogger{l}
}

type withLogger struct{ l *slog.Logger }

func (w withLogger) Resolve(o *opts.DialOpt) {
	o.Logger = w.l
}

// WithProjectID returns a ClientOption that sets the cloud project used by
// project-scoped operations. Pass [DetectProjectID] to determine the project
// from the environment or the detected credentials.
func WithProjectID(projectID string) ClientOption {
	return withProjectID(projectID)
}

type withProjectID string

func (w withProjectID) Resolve(o *opts.DialOpt) {
	o.ProjectID = string(w)
}

// WithoutAuthentication returns a ClientOption that disables authentication,
// for use against emulators and other endpoints that require no credentials.
// It is incompatible with options that set or detect credentials.
func WithoutAuthentication() ClientOption {
	return withoutAuthentication{}
}

type withoutAuthentication struct{}

func (w withoutAuthentication) Resolve(o *opts.DialOpt) {
	o.NoAuth = true
}
