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

package httptransport

import (
	"context"
	"net/http"
	"os"

	"github.com/go-gcloud/gcloud/auth"
	"github.com/go-gcloud/gcloud/auth/internal"
	"github.com/go-gcloud/gcloud/auth/internal/transport"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// quotaProjectHeaderKey is the name of the header used for the quota project.
const quotaProjectHeaderKey = "X-Goog-User-Project"

func newTransport(base http.RoundTripper, opts *Options) (http.RoundTripper, error) {
	var headers = opts.Headers
	ht := &headerTransport{
		base:    base,
		headers: headers,
	}
	var trans http.RoundTripper = ht
	trans = addOpenTelemetryTransport(trans, opts)
	switch {
	case opts.DisableAuthentication:
		// Do nothing.
	case opts.APIKey != "":
		qp := internal.GetQuotaProject(nil, "")
		if qp != "" {
			if headers == nil {
				headers = make(map[string][]string, 1)
				ht.headers = headers
			}
			// Don't overwrite user specified quota
			if v := headers.Get(quotaProjectHeaderKey); v == "" {
				headers.Set(quotaProjectHeaderKey, qp)
			}
		}
		trans = &apiKeyTransport{
			Transport: trans,
			Key:       opts.APIKey,
		}
	default:
		creds, err := opts.resolveCredentials()
		if err != nil {
			return nil, err
		}
		qp, err := creds.QuotaProjectID(context.Background())
		if err != nil {
			return nil, err
		}
		if qp != "" {
			if headers == nil {
				headers = make(map[string][]string, 1)
				ht.headers = headers
			}
			// Don't overwrite user specified quota
			if v := headers.Get(quotaProjectHeaderKey); v == "" {
				headers.Set(quotaProjectHeaderKey, qp)
			}
		}
		trans = &authTransport{
			base:                 trans,
			creds:                creds,
			clientUniverseDomain: internal.StaticCredentialsProperty(opts.UniverseDomain),
		}
	}
	return trans, nil
}

// defaultBaseTransport returns the base HTTP transport. It uses a clone of
// [net/http.DefaultTransport] with a raised connection-pool size when the
// default transport is clonable, otherwise the default transport as-is.
func defaultBaseTransport() http.RoundTripper {
	defaultTransport, ok := http.DefaultTransport.(*http.Transport)
	if !ok {
		return http.DefaultTransport
	}
	trans := defaultTransport.Clone()
	trans.MaxIdleConnsPerHost = 100
	return trans
}

func addOpenTelemetryTransport(trans http.RoundTripper, opts *Options) http.RoundTripper {
	if opts.DisableTelemetry {
		return trans
	}
	return otelhttp.NewTransport(trans)
}

type headerTransport struct {
	headers http.Header
	base    http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt := t.base
	newReq := *req
	newReq.Header = make(http.Header)
	for k, vv := range req.Header {
		newReq.Header[k] = vv
	}

	for k, v := range t.headers {
		newReq.Header[k] = v
	}

	return rt.RoundTrip(&newReq)
}

type apiKeyTransport struct {
	// Key is the API Key to set on requests.
	Key string
	// Transport is the underlying HTTP transport.
	Transport http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	newReq := *req
	args := newReq.URL.Query()
	args.Set("key", t.Key)
	newURL := *req.URL
	newURL.RawQuery = args.Encode()
	newReq.URL = &newURL
	return t.Transport.RoundTrip(&newReq)
}

type authTransport struct {
	creds                *auth.Credentials
	base                 http.RoundTripper
	clientUniverseDomain auth.CredentialsPropertyProvider
}

// getClientUniverseDomain returns the default service domain for a given
// Cloud universe, with the following precedence:
//
//  1. A non-empty option.WithUniverseDomain or similar client option.
//  2. A non-empty environment variable GOOGLE_CLOUD_UNIVERSE_DOMAIN.
//  3. The default value "googleapis.com".
func (t *authTransport) getClientUniverseDomain(ctx context.Context) (string, error) {
	if t.clientUniverseDomain != nil {
		ud, err := t.clientUniverseDomain.GetProperty(ctx)
		if err != nil {
			return "", err
		}
		if ud != "" {
			return ud, nil
		}
	}
	if envUD := os.Getenv(internal.UniverseDomainEnvVar); envUD != "" {
		return envUD, nil
	}
	return internal.DefaultUniverseDomain, nil
}

// RoundTrip authorizes and authenticates the request with an access token
// from the transport's credentials. Per the RoundTripper contract we must not
// modify the initial request, so we clone it, and we must close the body on
// any errors that happen during our token logic.
func (t *authTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqBodyClosed := false
	if req.Body != nil {
		defer func() {
			if !reqBodyClosed {
				req.Body.Close()
			}
		}()
	}
	token, err := t.creds.Token(req.Context())
	if err != nil {
		return nil, err
	}
	// Tokens minted by the metadata service are always scoped to the universe
	// the workload runs in, so only cross-check explicitly configured
	// credentials.
	if token.MetadataString("auth.google.tokenSource") != "compute-metadata" {
		credentialsUniverseDomain, err := t.creds.UniverseDomain(req.Context())
		if err != nil {
			return nil, err
		}
		clientUniverseDomain, err := t.getClientUniverseDomain(req.Context())
		if err != nil {
			return nil, err
		}
		if err := transport.ValidateUniverseDomain(clientUniverseDomain, credentialsUniverseDomain); err != nil {
			return nil, err
		}
	}
	req2 := req.Clone(req.Context())
	SetAuthHeader(token, req2)
	reqBodyClosed = true
	return t.base.RoundTrip(req2)
}
