// Copyright 2025 Google LLC
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
	"fmt"
	"os"

	"github.com/go-gcloud/gcloud/auth"
)

// CredentialsType represents the type of a credential file, mirroring the
// "type" field of its JSON contents.
type CredentialsType int

const (
	// UnknownCredentialsType is an unidentified credential type.
	UnknownCredentialsType CredentialsType = iota
	// ServiceAccount represents a service account key file.
	ServiceAccount
	// UserCredentials represents an authorized user file.
	UserCredentials
	// ExternalAccount represents an external account file.
	ExternalAccount
	// ImpersonatedServiceAccount represents an impersonated service account
	// file.
	ImpersonatedServiceAccount
)

// String returns the credential file "type" field value the constant
// corresponds to.
func (c CredentialsType) String() string {
	switch c {
	case ServiceAccount:
		return "service_account"
	case UserCredentials:
		return "authorized_user"
	case ExternalAccount:
		return "external_account"
	case ImpersonatedServiceAccount:
		return "impersonated_service_account"
	default:
		return "unknown"
	}
}

// NewCredentialsFromFile creates [github.com/go-gcloud/gcloud/auth.Credentials]
// from a credential file on disk, after verifying the file declares the
// expected credType. A file of a different type is rejected before any
// credential is constructed, guarding against configuration mix-ups.
func NewCredentialsFromFile(ctx context.Context, credType CredentialsType, path string, opts *DetectOptions) (*auth.Credentials, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return NewCredentialsFromJSON(ctx, credType, b, opts)
}

// NewCredentialsFromJSON creates [github.com/go-gcloud/gcloud/auth.Credentials]
// from in-memory credential JSON, after verifying the bytes declare the
// expected credType. The semantics otherwise match [NewCredentialsFromFile].
func NewCredentialsFromJSON(ctx context.Context, credType CredentialsType, b []byte, opts *DetectOptions) (*auth.Credentials, error) {
	if err := checkCredentialType(credType, b); err != nil {
		return nil, err
	}
	if opts == nil {
		opts = &DetectOptions{}
	}
	opts.CredentialsJSON = b
	return DetectDefault(opts)
}

func checkCredentialType(credType CredentialsType, b []byte) error {
	var typeChecker struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(b, &typeChecker); err != nil {
		return err
	}
	if typeChecker.Type != credType.String() {
		return fmt.Errorf("credentials: expected type %q, found %q", credType, typeChecker.Type)
	}
	return nil
}
