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

// Package storage provides a client for Google Cloud Storage over the JSON
// API.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"

	gcloud "github.com/go-gcloud/gcloud"
	"github.com/go-gcloud/gcloud/auth"
	"github.com/go-gcloud/gcloud/internal/detect"
	"github.com/go-gcloud/gcloud/internal/trace"
	"google.golang.org/api/googleapi"
	raw "google.golang.org/api/storage/v1"
)

var (
	// ErrBucketNotExist indicates that the bucket does not exist.
	ErrBucketNotExist = errors.New("storage: bucket doesn't exist")
	// ErrObjectNotExist indicates that the object does not exist.
	ErrObjectNotExist = errors.New("storage: object doesn't exist")
)

const (
	// ScopeFullControl grants permissions to manage your
	// data and permissions in Google Cloud Storage.
	ScopeFullControl = raw.DevstorageFullControlScope

	// ScopeReadOnly grants permissions to
	// view your data in Google Cloud Storage.
	ScopeReadOnly = raw.DevstorageReadOnlyScope

	// ScopeReadWrite grants permissions to manage your
	// data in Google Cloud Storage.
	ScopeReadWrite = raw.DevstorageReadWriteScope
)

const (
	defaultEndpoint       = "https://storage.googleapis.com/storage/v1"
	defaultUploadEndpoint = "https://storage.googleapis.com/upload/storage/v1"

	emulatorEnvVar = "STORAGE_EMULATOR_HOST"
)

// Client is a client for interacting with Google Cloud Storage.
//
// Clients should be reused instead of created as needed.
// The methods of Client are safe for concurrent use by multiple goroutines.
type Client struct {
	hc             *http.Client
	endpoint       string
	uploadEndpoint string
	projectID      string
	retry          *retryConfig
}

// NewClient creates a new Google Cloud Storage client.
// The default scope is ScopeFullControl. To use a different scope, like
// ScopeReadOnly, use gcloud.WithScopes.
//
// If the STORAGE_EMULATOR_HOST environment variable is set, the client
// connects to it without authentication instead of the production service.
func NewClient(ctx context.Context, opt ...gcloud.ClientOption) (*Client, error) {
	opt = append([]gcloud.ClientOption{
		gcloud.WithScopes(ScopeFullControl, "https://www.googleapis.com/auth/cloud-platform"),
	}, opt...)

	endpoint := defaultEndpoint
	uploadEndpoint := defaultUploadEndpoint
	if host := os.Getenv(emulatorEnvVar); host != "" {
		if !strings.Contains(host, "://") {
			host = "http://" + host
		}
		endpoint = host + "/storage/v1"
		uploadEndpoint = host + "/upload/storage/v1"
		opt = append(opt, gcloud.WithoutAuthentication())
	}

	o := gcloud.ResolveOptions(opt)
	if o.Endpoint != "" {
		endpoint = strings.TrimSuffix(o.Endpoint, "/")
		uploadEndpoint = endpoint
	}

	projectID := o.ProjectID
	if projectID == gcloud.DetectProjectID {
		var creds *auth.Credentials
		if !o.NoAuth {
			var err error
			creds, err = gcloud.Credentials(ctx, opt...)
			if err != nil {
				return nil, fmt.Errorf("storage: detecting project ID: %w", err)
			}
		}
		detected, err := detect.ProjectID(ctx, projectID, emulatorEnvVar, creds)
		if err != nil {
			return nil, fmt.Errorf("storage: %w", err)
		}
		projectID = detected
	}

	hc, err := gcloud.DialHTTP(ctx, opt...)
	if err != nil {
		return nil, fmt.Errorf("storage: dialing: %w", err)
	}
	return &Client{
		hc:             hc,
		endpoint:       endpoint,
		uploadEndpoint: uploadEndpoint,
		projectID:      projectID,
	}, nil
}

// Close closes the Client.
//
// Close need not be called at program exit.
func (c *Client) Close() error {
	c.hc = nil
	return nil
}

// SetRetry configures the client with custom retry behavior as specified by
// the options that are passed to it. All operations using this client will
// use the customized retry configuration.
func (c *Client) SetRetry(opts ...RetryOption) {
	var retry *retryConfig = &retryConfig{}
	for _, opt := range opts {
		opt.apply(retry)
	}
	c.retry = retry
}

// Bucket returns a BucketHandle, which provides operations on the named
// bucket. This call does not perform any network operations.
//
// The supplied name must contain only lowercase letters, numbers, dashes,
// underscores, and dots. The full specification for valid bucket names can be
// found at:
//
//	https://cloud.google.com/storage/docs/bucket-naming
func (c *Client) Bucket(name string) *BucketHandle {
	return &BucketHandle{
		c:    c,
		name: name,
		acl: ACLHandle{
			c:      c,
			bucket: name,
		},
		defaultObjectACL: ACLHandle{
			c:         c,
			bucket:    name,
			isDefault: true,
		},
		retry: c.retry,
	}
}

// Buckets returns an iterator over the buckets in the given project. You may
// optionally set the iterator's Prefix field to restrict the list to buckets
// whose names begin with the prefix. By default, all buckets in the project
// are returned.
//
// If projectID is empty, the project the client was constructed with is used.
func (c *Client) Buckets(ctx context.Context, projectID string) *BucketIterator {
	if projectID == "" {
		projectID = c.projectID
	}
	return newBucketIterator(ctx, c, projectID)
}

// bucketURL returns the JSON API URL for the named bucket with the given
// trailing path elements, each of which is escaped.
func (c *Client) bucketURL(bucket string, elem ...string) string {
	var b strings.Builder
	b.WriteString(c.endpoint)
	b.WriteString("/b/")
	b.WriteString(url.PathEscape(bucket))
	for _, e := range elem {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(e))
	}
	return b.String()
}

// doRequest performs a single HTTP request against the JSON API, translating
// non-2xx responses into *googleapi.Error. The caller owns the response body.
func (c *Client) doRequest(ctx context.Context, method, rawurl string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawurl, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	res, err := c.hc.Do(req)
	if err != nil {
		return nil, err
	}
	if err := googleapi.CheckResponse(res); err != nil {
		res.Body.Close()
		return nil, err
	}
	return res, nil
}

// doJSON performs an HTTP request whose request and response bodies are JSON,
// decoding the response into result when result is non-nil.
func (c *Client) doJSON(ctx context.Context, method, rawurl string, reqBody, result interface{}) error {
	var body io.Reader
	var contentType string
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return err
		}
		body = strings.NewReader(string(b))
		contentType = "application/json"
	}
	res, err := c.doRequest(ctx, method, rawurl, body, contentType)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if result == nil {
		io.Copy(io.Discard, res.Body)
		return nil
	}
	return json.NewDecoder(res.Body).Decode(result)
}

func startSpan(ctx context.Context, name string) context.Context {
	return trace.StartSpan(ctx, "github.com/go-gcloud/gcloud/storage."+name)
}

func endSpan(ctx context.Context, err error) {
	trace.EndSpan(ctx, err)
}
