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

// Package gcloud contains the client options and dial helpers shared by the
// service packages in this module. Most developers should call the relevant
// NewClient method for the target service rather than dialing directly.
package gcloud

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-gcloud/gcloud/auth"
	"github.com/go-gcloud/gcloud/auth/credentials"
	"github.com/go-gcloud/gcloud/auth/httptransport"
	"github.com/go-gcloud/gcloud/auth/oauth2adapt"
	"github.com/go-gcloud/gcloud/internal"
	"github.com/go-gcloud/gcloud/internal/opts"
	"google.golang.org/grpc"
	grpccreds "google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/oauth"
)

// DetectProjectID is a sentinel value that instructs a client constructed
// with [WithProjectID] to detect the project ID from the environment or the
// detected credentials.
const DetectProjectID = "*detect-project-id*"

// Credentials returns the credentials a client built from the given options
// would authenticate with. Explicitly supplied providers take precedence;
// otherwise the default detection order applies: a credentials file named by
// the environment, then the ambient compute identity.
func Credentials(ctx context.Context, opt ...ClientOption) (*auth.Credentials, error) {
	return resolveCredentials(resolve(opt))
}

func resolve(opt []ClientOption) *opts.DialOpt {
	var o opts.DialOpt
	for _, op := range opt {
		op.Resolve(&o)
	}
	return &o
}

func resolveCredentials(o *opts.DialOpt) (*auth.Credentials, error) {
	switch {
	case o.NoAuth:
		return nil, errors.New("gcloud: no credentials available when authentication is disabled")
	case o.TokenProvider != nil:
		return auth.NewCredentials(&auth.CredentialsOptions{
			TokenProvider: auth.NewCachedTokenProvider(o.TokenProvider, nil),
		}), nil
	case o.TokenSource != nil:
		tp := oauth2adapt.TokenProviderFromTokenSource(o.TokenSource)
		return auth.NewCredentials(&auth.CredentialsOptions{
			TokenProvider: auth.NewCachedTokenProvider(tp, nil),
		}), nil
	default:
		return credentials.DetectDefault(&credentials.DetectOptions{
			Scopes:          o.Scopes,
			CredentialsFile: o.CredentialsFile,
			CredentialsJSON: o.CredentialsJSON,
			Logger:          o.Logger,
		})
	}
}

// DialHTTP returns an HTTP client for communicating with a Google cloud
// service, configured with the given ClientOptions. Unless a base client is
// supplied with [WithBaseHTTP], every request carries an Authorization header
// obtained from the shared token cache and the configured user agent.
func DialHTTP(ctx context.Context, opt ...ClientOption) (*http.Client, error) {
	o := resolve(opt)
	if o.HTTPClient != nil {
		if o.TokenProvider != nil || o.TokenSource != nil {
			return nil, errors.New("gcloud: WithBaseHTTP is incompatible with options that supply credentials")
		}
		return o.HTTPClient, nil
	}
	hopts := &httptransport.Options{
		BaseRoundTripper: &internal.Transport{UserAgent: o.UserAgent},
		Endpoint:         o.Endpoint,
		Logger:           o.Logger,
	}
	if o.NoAuth {
		hopts.DisableAuthentication = true
	} else {
		creds, err := resolveCredentials(o)
		if err != nil {
			return nil, err
		}
		hopts.Credentials = creds
	}
	return httptransport.NewClient(hopts)
}

// DialGRPC returns a gRPC connection for communicating with a Google cloud
// service, configured with the given ClientOptions. Tokens are attached as
// per-RPC credentials over TLS.
func DialGRPC(ctx context.Context, opt ...ClientOption) (*grpc.ClientConn, error) {
	o := resolve(opt)
	if o.HTTPClient != nil {
		return nil, errors.New("gcloud: unsupported HTTP base transport specified")
	}
	if o.NoAuth {
		return nil, errors.New("gcloud: authentication cannot be disabled for gRPC connections")
	}
	if o.Endpoint == "" {
		return nil, errors.New("gcloud: endpoint required for gRPC connections")
	}
	creds, err := resolveCredentials(o)
	if err != nil {
		return nil, err
	}
	ts := oauth2adapt.TokenSourceFromTokenProvider(creds.TokenProvider)
	grpcOpts := []grpc.DialOption{
		grpc.WithPerRPCCredentials(oauth.TokenSource{TokenSource: ts}),
		grpc.WithTransportCredentials(grpccreds.NewClientTLSFromCert(nil, "")),
	}
	if o.UserAgent != "" {
		grpcOpts = append(grpcOpts, grpc.WithUserAgent(o.UserAgent))
	}
	return grpc.NewClient(o.Endpoint, grpcOpts...)
}
