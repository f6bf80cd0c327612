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

package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-gcloud/gcloud/auth"
	"github.com/go-gcloud/gcloud/auth/internal"
	"github.com/go-gcloud/gcloud/auth/internal/header"
	"github.com/googleapis/gax-go/v2/internallog"
)

const (
	// computeMetadataHostEnvVar overrides the address of the metadata service.
	// Its presence also marks the process as running on a compute environment.
	computeMetadataHostEnvVar = "GCE_METADATA_HOST"
	defaultMetadataHost       = "metadata.google.internal"
	metadataBasePath          = "/computeMetadata/v1/"
	metadataFlavorHeader      = "Metadata-Flavor"
	metadataFlavorValue       = "Google"
	projectIDURI              = "project/project-id"
	universeDomainURI         = "universe/universe_domain"
)

var (
	computeTokenMetadata = map[string]interface{}{
		"auth.google.tokenSource":    "compute-metadata",
		"auth.google.serviceAccount": "default",
	}
	computeTokenURI = "instance/service-accounts/default/token"
)

// computeTokenProvider creates a [github.com/go-gcloud/gcloud/auth.TokenProvider]
// that uses the metadata service to retrieve tokens.
func computeTokenProvider(opts *DetectOptions) auth.TokenProvider {
	return auth.NewCachedTokenProvider(&computeProvider{
		scopes: opts.Scopes,
		client: opts.client(),
		logger: opts.logger(),
	}, &auth.CachedTokenProviderOptions{
		ExpireEarly: opts.EarlyTokenRefresh,
	})
}

// computeProvider fetches tokens from the google cloud metadata service.
type computeProvider struct {
	scopes []string
	client *http.Client
	logger *slog.Logger
}

type metadataTokenResp struct {
	AccessToken  string `json:"access_token"`
	ExpiresInSec int    `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (cs *computeProvider) Token(ctx context.Context) (*auth.Token, error) {
	tokenURI, err := url.Parse(computeTokenURI)
	if err != nil {
		return nil, err
	}
	if len(cs.scopes) > 0 {
		v := url.Values{}
		v.Set("scopes", strings.Join(cs.scopes, ","))
		tokenURI.RawQuery = v.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+metadataHost()+metadataBasePath+tokenURI.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(metadataFlavorHeader, metadataFlavorValue)
	req.Header.Set(header.GOOGLE_API_CLIENT_HEADER, header.GetGoogHeaderToken(header.CredTypeMDS, header.TokenTypeAccess))
	cs.logger.DebugContext(ctx, "compute token request", "request", internallog.HTTPRequest(req, nil))
	resp, body, err := internal.DoRequest(cs.client, req)
	if err != nil {
		return nil, fmt.Errorf("credentials: cannot fetch token from metadata: %w", err)
	}
	cs.logger.DebugContext(ctx, "compute token response", "response", internallog.HTTPResponse(resp, body))
	if resp.StatusCode != http.StatusOK {
		return nil, &auth.Error{Response: resp, Body: body}
	}
	var res metadataTokenResp
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("credentials: invalid token JSON from metadata: %w", err)
	}
	if res.AccessToken == "" {
		return nil, errors.New("credentials: incomplete token received from metadata")
	}
	// The metadata service is authoritative for lifetime, with no minimum
	// enforced here. A zero expires_in yields a token that is already expired,
	// never an error.
	return &auth.Token{
		Value:    res.AccessToken,
		Type:     res.TokenType,
		Expiry:   now().Add(time.Duration(res.ExpiresInSec) * time.Second),
		Metadata: computeTokenMetadata,
	}, nil
}

// metadataHost returns the host to contact for instance metadata, honoring the
// environment override used by tests and emulators.
func metadataHost() string {
	if host := os.Getenv(computeMetadataHostEnvVar); host != "" {
		return host
	}
	return defaultMetadataHost
}

// metadataGet fetches a single metadata value for the given resource suffix.
func metadataGet(ctx context.Context, client *http.Client, logger *slog.Logger, suffix string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+metadataHost()+metadataBasePath+suffix, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set(metadataFlavorHeader, metadataFlavorValue)
	logger.DebugContext(ctx, "compute metadata request", "request", internallog.HTTPRequest(req, nil))
	resp, body, err := internal.DoRequest(client, req)
	if err != nil {
		return "", fmt.Errorf("credentials: cannot query metadata: %w", err)
	}
	logger.DebugContext(ctx, "compute metadata response", "response", internallog.HTTPResponse(resp, body))
	if resp.StatusCode != http.StatusOK {
		return "", &auth.Error{Response: resp, Body: body}
	}
	return string(body), nil
}

// computeUniverseDomainProvider fetches the credentials universe domain from
// the google cloud metadata service.
type computeUniverseDomainProvider struct {
	client *http.Client
	logger *slog.Logger

	universeDomainOnce sync.Once
	universeDomain     string
	universeDomainErr  error
}

func (c *computeUniverseDomainProvider) GetProperty(ctx context.Context) (string, error) {
	c.universeDomainOnce.Do(func() {
		c.universeDomain, c.universeDomainErr = getMetadataUniverseDomain(ctx, c.client, c.logger)
	})
	if c.universeDomainErr != nil {
		return "", c.universeDomainErr
	}
	return c.universeDomain, nil
}

func getMetadataUniverseDomain(ctx context.Context, client *http.Client, logger *slog.Logger) (string, error) {
	universeDomain, err := metadataGet(ctx, client, logger, universeDomainURI)
	if err == nil {
		return universeDomain, nil
	}
	// Older environments do not serve the universe endpoint at all. Treat a
	// 404 as the default universe rather than an error.
	var aErr *auth.Error
	if errors.As(err, &aErr) && aErr.Response != nil && aErr.Response.StatusCode == http.StatusNotFound {
		return internal.DefaultUniverseDomain, nil
	}
	return "", err
}
