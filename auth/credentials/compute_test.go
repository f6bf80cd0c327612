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
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gcloud/gcloud/auth"
)

func TestComputeTokenProvider(t *testing.T) {
	testCases := []struct {
		name       string
		scopes     []string
		wantScopes string
	}{
		{
			name:       "SingleScope",
			scopes:     []string{"https://www.googleapis.com/auth/bigquery"},
			wantScopes: "https://www.googleapis.com/auth/bigquery",
		},
		{
			name:       "MultipleScopes",
			scopes:     []string{"https://www.googleapis.com/auth/bigquery", "https://www.googleapis.com/auth/devstorage.full_control"},
			wantScopes: "https://www.googleapis.com/auth/bigquery,https://www.googleapis.com/auth/devstorage.full_control",
		},
		{
			name:       "NoScopes",
			scopes:     nil,
			wantScopes: "",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got, want := r.URL.Path, metadataBasePath+computeTokenURI; got != want {
					t.Errorf("got path %q, want %q", got, want)
				}
				if got, want := r.Header.Get(metadataFlavorHeader), metadataFlavorValue; got != want {
					t.Errorf("got %s %q, want %q", metadataFlavorHeader, got, want)
				}
				if got := r.Header.Get("X-Goog-Api-Client"); !strings.Contains(got, "cred-type/mds") {
					t.Errorf("got X-Goog-Api-Client %q, want it to contain cred-type/mds", got)
				}
				if got, want := r.URL.Query().Get("scopes"), tc.wantScopes; got != want {
					t.Errorf("got scopes %q, want %q", got, want)
				}
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(`{"access_token": "90d64460d14870c08c81352a05dedd3465940a7c", "token_type": "bearer", "expires_in": 86400}`))
			}))
			defer ts.Close()
			t.Setenv(computeMetadataHostEnvVar, strings.TrimPrefix(ts.URL, "http://"))
			tp := computeTokenProvider(&DetectOptions{
				EarlyTokenRefresh: 0,
				Scopes:            tc.scopes,
			})
			tok, err := tp.Token(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if want := "90d64460d14870c08c81352a05dedd3465940a7c"; tok.Value != want {
				t.Errorf("got %q, want %q", tok.Value, want)
			}
			if want := "bearer"; tok.Type != want {
				t.Errorf("got %q, want %q", tok.Type, want)
			}
			if got, want := tok.MetadataString("auth.google.tokenSource"), "compute-metadata"; got != want {
				t.Errorf("got %q, want %q", got, want)
			}
		})
	}
}

func TestComputeProvider_Expiry(t *testing.T) {
	fixed := time.Now()
	oldNow := now
	now = func() time.Time { return fixed }
	t.Cleanup(func() { now = oldNow })

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "90d64460d14870c08c81352a05dedd3465940a7c", "token_type": "Bearer", "expires_in": 3600}`))
	}))
	defer ts.Close()
	t.Setenv(computeMetadataHostEnvVar, strings.TrimPrefix(ts.URL, "http://"))

	opts := &DetectOptions{}
	cs := &computeProvider{client: opts.client(), logger: opts.logger()}
	tok, err := cs.Token(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	// The service's expires_in is authoritative for the recorded expiry.
	if want := fixed.Add(3600 * time.Second); !tok.Expiry.Equal(want) {
		t.Errorf("got expiry %v, want %v", tok.Expiry, want)
	}
	if !tok.IsValid() {
		t.Error("got invalid token, want valid")
	}
}

func TestComputeProvider_ZeroExpiresIn(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token": "abc123", "token_type": "Bearer", "expires_in": 0}`))
	}))
	defer ts.Close()
	t.Setenv(computeMetadataHostEnvVar, strings.TrimPrefix(ts.URL, "http://"))

	opts := &DetectOptions{}
	cs := &computeProvider{client: opts.client(), logger: opts.logger()}
	tok, err := cs.Token(context.Background())
	if err != nil {
		t.Fatalf("Token() = %v, want already-expired token without error", err)
	}
	if want := "abc123"; tok.Value != want {
		t.Errorf("got %q, want %q", tok.Value, want)
	}
	if tok.IsValid() {
		t.Error("got valid token, want expired")
	}
}

func TestComputeProvider_Error(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}))
	defer ts.Close()
	t.Setenv(computeMetadataHostEnvVar, strings.TrimPrefix(ts.URL, "http://"))

	opts := &DetectOptions{}
	cs := &computeProvider{client: opts.client(), logger: opts.logger()}
	if _, err := cs.Token(context.Background()); err == nil {
		t.Fatal("got nil, want an error")
	} else {
		var aErr *auth.Error
		if !errors.As(err, &aErr) {
			t.Fatalf("got %T, want *auth.Error", err)
		}
		if aErr.Response.StatusCode != http.StatusNotFound {
			t.Errorf("got status %d, want %d", aErr.Response.StatusCode, http.StatusNotFound)
		}
	}
}

func TestComputeTokenProvider_RefreshOnExpiry(t *testing.T) {
	exchanges := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		exchanges++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"access_token": "tok%d", "token_type": "Bearer", "expires_in": 1}`, exchanges)
	}))
	defer ts.Close()
	t.Setenv(computeMetadataHostEnvVar, strings.TrimPrefix(ts.URL, "http://"))

	ctx := context.Background()
	tp := computeTokenProvider(&DetectOptions{})
	tok, err := tp.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := "tok1"; tok.Value != want {
		t.Errorf("got %q, want %q", tok.Value, want)
	}
	// Still valid, so no network call is made.
	if _, err := tp.Token(ctx); err != nil {
		t.Fatal(err)
	}
	if exchanges != 1 {
		t.Errorf("got %d exchanges, want 1", exchanges)
	}

	time.Sleep(1100 * time.Millisecond)
	tok2, err := tp.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if want := "tok2"; tok2.Value != want {
		t.Errorf("got %q, want %q", tok2.Value, want)
	}
	if exchanges != 2 {
		t.Errorf("got %d exchanges, want 2", exchanges)
	}
	if !tok2.Expiry.After(tok.Expiry) {
		t.Errorf("got expiry %v, want it after %v", tok2.Expiry, tok.Expiry)
	}
}

func TestComputeUniverseDomainProvider(t *testing.T) {
	testCases := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{
			name:   "Explicit",
			status: http.StatusOK,
			body:   "example.com",
			want:   "example.com",
		},
		{
			name:   "NotServed",
			status: http.StatusNotFound,
			body:   "not found",
			want:   "googleapis.com",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			calls := 0
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if got, want := r.URL.Path, metadataBasePath+universeDomainURI; got != want {
					t.Errorf("got path %q, want %q", got, want)
				}
				calls++
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer ts.Close()
			t.Setenv(computeMetadataHostEnvVar, strings.TrimPrefix(ts.URL, "http://"))

			ctx := context.Background()
			opts := &DetectOptions{}
			p := &computeUniverseDomainProvider{client: opts.client(), logger: opts.logger()}
			got, err := p.GetProperty(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
			// The value is resolved once and memoized.
			if _, err := p.GetProperty(ctx); err != nil {
				t.Fatal(err)
			}
			if calls != 1 {
				t.Errorf("got %d metadata calls, want 1", calls)
			}
		})
	}
}
