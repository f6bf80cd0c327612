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

// Package credentials provides support for making OAuth2 authorized and
// authenticated HTTP requests to Google APIs. It supports service account
// keys, both exchanged for an access token and used to mint self-signed JWTs,
// and service accounts attached to Google Compute Engine, Cloud Run, and
// Cloud Functions workloads via the instance metadata service.
//
// A brief overview of the package follows. For more information, please read
// https://developers.google.com/accounts/docs/OAuth2
// and
// https://developers.google.com/accounts/docs/application-default-credentials.
//
// # Credentials
//
// The [github.com/go-gcloud/gcloud/auth.Credentials] type represents Google
// credentials, including Application Default Credentials.
//
// Use [DetectDefault] to obtain Application Default Credentials: the source of
// the credentials is resolved exactly once, when the credentials are built,
// and never re-evaluated afterwards. A service account key named by the
// GOOGLE_APPLICATION_CREDENTIALS environment variable wins over metadata
// service detection, and when neither is configured construction fails rather
// than guessing.
//
// Use [NewCredentialsFromFile] or [NewCredentialsFromJSON] when the program
// knows which kind of credential it expects; the loaders verify the "type"
// field of the payload before building anything.
//
// # Security considerations
//
// Credential files grant whoever holds them the full authority of the service
// account. It is not recommended to load a credential configuration that you
// did not generate yourself unless you verify the token_uri field points to a
// googleapis.com domain.
package credentials
