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

// Package credsfile is meant to hide implementation details from the public
// surface of the credentials package. It should not import any other packages
// in this module. It is located under the main internal package so other
// sub-packages can use these parsed types as well.
package credsfile

import (
	"os"
)

// GoogleAppCredsEnvVar is the environment variable for setting a path to a
// credential file.
const GoogleAppCredsEnvVar = "GOOGLE_APPLICATION_CREDENTIALS"

// CredentialType represents different credential filetypes Google credentials
// can be.
type CredentialType int

const (
	// UnknownCredType is an unidentified file type.
	UnknownCredType CredentialType = iota
	// UserCredentialsKey represents a user creds file type.
	UserCredentialsKey
	// ServiceAccountKey represents a service account file type.
	ServiceAccountKey
	// ImpersonatedServiceAccountKey represents an impersonated service account
	// file type.
	ImpersonatedServiceAccountKey
	// ExternalAccountKey represents an external account file type.
	ExternalAccountKey
)

// ServiceAccountFile representation of a service account json file. It holds
// the long-lived identity and signing key used to mint signed assertions and
// is never mutated after parsing.
type ServiceAccountFile struct {
	Type                string `json:"type"`
	ProjectID           string `json:"project_id"`
	PrivateKeyID        string `json:"private_key_id"`
	PrivateKey          string `json:"private_key"`
	ClientEmail         string `json:"client_email"`
	ClientID            string `json:"client_id"`
	AuthURL             string `json:"auth_uri"`
	TokenURL            string `json:"token_uri"`
	AuthProviderCertURL string `json:"auth_provider_x509_cert_url"`
	ClientCertURL       string `json:"client_x509_cert_url"`
}

// GetFileNameFromEnv returns the override if provided or detects a filename
// from the environment.
func GetFileNameFromEnv(override string) string {
	if override != "" {
		return override
	}
	return os.Getenv(GoogleAppCredsEnvVar)
}
