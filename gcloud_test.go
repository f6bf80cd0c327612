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
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-gcloud/gcloud/auth"
	"github.com/google/go-cmp/cmp"
	"golang.org/x/oauth2"
)

type staticTokenProvider string

func (s staticTokenProvider) Token(context.Context) (*auth.Token, error) {
	return &auth.Token{
		Value:  string(s),
		Type:   "Bearer",
		Expiry: time.Now().Add(time.Hour),
	}, nil
}

func TestResolveOptions(t *testing.T) {
	logger := slog.Default()
	hc := &http.Client{}
	tp := staticTokenProvider("tok")
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok"})

	o := ResolveOptions([]ClientOption{
		WithTokenProvider(tp),
		WithTokenSource(ts),
		WithCredentialsFile("creds.json"),
		WithCredentialsJSON([]byte(`{"type": "service_account"}`)),
		WithScopes("scope1", "scope2"),
		WithEndpoint("https://example.googleapis.com"),
		WithBaseHTTP(hc),
		WithUserAgent("my-app/1.2"),
		WithLogger(logger),
		WithProjectID("my-project"),
		WithoutAuthentication(),
	})

	if o.TokenProvider == nil {
		t.Error("TokenProvider not set")
	}
	if o.TokenSource == nil {
		t.Error("TokenSource not set")
	}
	if got, want := o.CredentialsFile, "creds.json"; got != want {
		t.Errorf("CredentialsFile: got %q, want %q", got, want)
	}
	if got, want := string(o.CredentialsJSON), `{"type": "service_account"}`; got != want {
		t.Errorf("CredentialsJSON: got %q, want %q", got, want)
	}
	if want := []string{"scope1", "scope2"}; !cmp.Equal(o.Scopes, want) {
		t.Errorf("Scopes: got %v, want %v", o.Scopes, want)
	}
	if got, want := o.Endpoint, "https://example.googleapis.com"; got != want {
		t.Errorf("Endpoint: got %q, want %q", got, want)
	}
	if o.HTTPClient != hc {
		t.Error("HTTPClient not set")
	}
	if got, want := o.UserAgent, "my-app/1.2"; got != want {
		t.Errorf("UserAgent: got %q, want %q", got, want)
	}
	if o.Logger != logger {
		t.Error("Logger not set")
	}
	if got, want := o.ProjectID, "my-project"; got != want {
		t.Errorf("ProjectID: got %q, want %q", got, want)
	}
	if !o.NoAuth {
		t.Error("NoAuth not set")
	}
}

func TestScopesOverride(t *testing.T) {
	o := ResolveOptions([]ClientOption{
		WithScopes("default-scope"),
		WithScopes("user-scope"),
	})
	if want := []string{"user-scope"}; !cmp.Equal(o.Scopes, want) {
		t.Errorf("Scopes: got %v, want %v", o.Scopes, want)
	}
}

func TestCredentialsWithTokenProvider(t *testing.T) {
	ctx := context.Background()
	creds, err := Credentials(ctx, WithTokenProvider(staticTokenProvider("fake-token")))
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	tok, err := creds.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.Value != "fake-token" {
		t.Errorf("token value: got %q, want %q", tok.Value, "fake-token")
	}
}

func TestCredentialsWithTokenSource(t *testing.T) {
	ctx := context.Background()
	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: "oauth2-token",
		Expiry:      time.Now().Add(time.Hour),
	})
	creds, err := Credentials(ctx, WithTokenSource(ts))
	if err != nil {
		t.Fatalf("Credentials: %v", err)
	}
	tok, err := creds.Token(ctx)
	if err != nil {
		t.Fatalf("Token: %v", err)
	}
	if tok.Value != "oauth2-token" {
		t.Errorf("token value: got %q, want %q", tok.Value, "oauth2-token")
	}
}

func TestCredentialsWithoutAuthentication(t *testing.T) {
	if _, err := Credentials(context.Background(), WithoutAuthentication()); err == nil {
		t.Error("Credentials with WithoutAuthentication: got nil, want error")
	}
}

func TestDialHTTP(t *testing.T) {
	ctx := context.Background()
	var gotAuth, gotUA string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
	}))
	defer ts.Close()

	hc, err := DialHTTP(ctx,
		WithTokenProvider(staticTokenProvider("fake-token")),
		WithUserAgent("my-app/1.2"),
	)
	if err != nil {
		t.Fatalf("DialHTTP: %v", err)
	}
	res, err := hc.Get(ts.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	res.Body.Close()
	if want := "Bearer fake-token"; gotAuth != want {
		t.Errorf("Authorization: got %q, want %q", gotAuth, want)
	}
	if !strings.Contains(gotUA, "my-app/1.2") || !strings.Contains(gotUA, "gcloud-go/") {
		t.Errorf("User-Agent: got %q, want it to contain the app and module products", gotUA)
	}
}

func TestDialHTTPWithoutAuthentication(t *testing.T) {
	ctx := context.Background()
	var gotAuth string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
	}))
	defer ts.Close()

	hc, err := DialHTTP(ctx, WithoutAuthentication())
	if err != nil {
		t.Fatalf("DialHTTP: %v", err)
	}
	res, err := hc.Get(ts.URL)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	res.Body.Close()
	if gotAuth != "" {
		t.Errorf("Authorization: got %q, want empty", gotAuth)
	}
}

func TestDialHTTPBase(t *testing.T) {
	ctx := context.Background()
	base := &http.Client{}
	hc, err := DialHTTP(ctx, WithBaseHTTP(base))
	if err != nil {
		t.Fatalf("DialHTTP: %v", err)
	}
	if hc != base {
		t.Error("DialHTTP with WithBaseHTTP did not return the base client")
	}

	if _, err := DialHTTP(ctx, WithBaseHTTP(base), WithTokenProvider(staticTokenProvider("t"))); err == nil {
		t.Error("DialHTTP with base client and credentials: got nil, want error")
	}
}

func TestDialGRPCValidation(t *testing.T) {
	ctx := context.Background()
	if _, err := DialGRPC(ctx, WithTokenProvider(staticTokenProvider("t"))); err == nil {
		t.Error("DialGRPC without endpoint: got nil, want error")
	}
	if _, err := DialGRPC(ctx, WithEndpoint("example.googleapis.com:443"), WithoutAuthentication()); err == nil {
		t.Error("DialGRPC without authentication: got nil, want error")
	}
	if _, err := DialGRPC(ctx, WithEndpoint("example.googleapis.com:443"), WithBaseHTTP(&http.Client{})); err == nil {
		t.Error("DialGRPC with base HTTP client: got nil, want error")
	}
}
