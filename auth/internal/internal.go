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

// Package internal provides helpers used across the auth packages.
package internal

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/go-gcloud/gcloud/auth/internal/retry"
	"github.com/googleapis/gax-go/v2"
)

const (
	// TokenTypeBearer is the auth header prefix for bearer tokens.
	TokenTypeBearer = "Bearer"

	// QuotaProjectEnvVar is the environment variable for setting the quota
	// project.
	QuotaProjectEnvVar = "GOOGLE_CLOUD_QUOTA_PROJECT"
	projectEnvVar      = "GOOGLE_CLOUD_PROJECT"
	maxBodySize        = 1 << 20

	// UniverseDomainEnvVar is the environment variable for setting the default
	// service domain for a given Cloud universe.
	UniverseDomainEnvVar = "GOOGLE_CLOUD_UNIVERSE_DOMAIN"

	// DefaultUniverseDomain is the default service domain for a given Cloud
	// universe.
	DefaultUniverseDomain = "googleapis.com"

	// defaultClientTimeout caps how long a single token request, including
	// retries, may take.
	defaultClientTimeout = 30 * time.Second
)

type clonableTransport interface {
	Clone() *http.Transport
}

// DefaultClient returns an http.Client with a default timeout set. The
// client's transport is a clone of http.DefaultTransport when the transport
// supports cloning so that later mutations of the default do not leak in.
func DefaultClient() *http.Client {
	if transport, ok := http.DefaultTransport.(clonableTransport); ok {
		return &http.Client{
			Transport: transport.Clone(),
			Timeout:   defaultClientTimeout,
		}
	}
	return &http.Client{
		Transport: http.DefaultTransport,
		Timeout:   defaultClientTimeout,
	}
}

// ParseKey converts the binary contents of a private key file to an
// *rsa.PrivateKey. It detects whether the private key is in a PEM container
// or not. If so, it extracts the private key from PEM container before
// conversion. It only supports PEM containers with no passphrase.
func ParseKey(key []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(key)
	if block != nil {
		key = block.Bytes
	}
	parsedKey, err := x509.ParsePKCS8PrivateKey(key)
	if err != nil {
		parsedKey, err = x509.ParsePKCS1PrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("private key should be a PEM or plain PKCS1 or PKCS8: %w", err)
		}
	}
	parsed, ok := parsedKey.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key is invalid")
	}
	return parsed, nil
}

// DoRequest executes the provided req with the client. Transient failures are
// retried with a bounded jittered backoff, replaying the request body between
// attempts when it is replayable. It reads the response body, closes it, and
// returns it.
func DoRequest(client *http.Client, req *http.Request) (*http.Response, []byte, error) {
	r := retry.New()
	for {
		resp, body, err := doRequest(client, req)
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		pause, shouldRetry := r.Retry(status, err)
		if !shouldRetry {
			return resp, body, err
		}
		if err := gax.Sleep(req.Context(), pause); err != nil {
			return nil, nil, err
		}
		if req.GetBody != nil {
			b, err := req.GetBody()
			if err != nil {
				return nil, nil, err
			}
			req.Body = b
		}
	}
}

func doRequest(client *http.Client, req *http.Request) (*http.Response, []byte, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp, nil, err
	}
	return resp, body, nil
}

// GetProjectID retrieves a project ID with precedence being: override,
// environment variable, creds file.
func GetProjectID(b []byte, override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(projectEnvVar); env != "" {
		return env
	}
	if b == nil {
		return ""
	}
	var v map[string]interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return ""
	}
	if q, ok := v["project_id"].(string); ok {
		return q
	}
	return ""
}

// GetQuotaProject retrieves a quota project with precedence being: override,
// environment variable, creds file.
func GetQuotaProject(b []byte, override string) string {
	if override != "" {
		return override
	}
	if env := os.Getenv(QuotaProjectEnvVar); env != "" {
		return env
	}
	if b == nil {
		return ""
	}
	var v map[string]interface{}
	if err := json.Unmarshal(b, &v); err != nil {
		return ""
	}
	if q, ok := v["quota_project_id"].(string); ok {
		return q
	}
	return ""
}

// StaticCredentialsProperty is a helper for creating static credentials
// properties.
func StaticCredentialsProperty(s string) StaticProperty {
	return StaticProperty(s)
}

// StaticProperty always returns that value of the underlying string.
type StaticProperty string

// GetProperty loads the properly value provided the given context.
func (p StaticProperty) GetProperty(context.Context) (string, error) {
	return string(p), nil
}
