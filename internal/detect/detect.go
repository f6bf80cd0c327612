// Copyright 2023 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package detect is used to find information from the environment.
package detect

import (
	"context"
	"errors"
	"os"

	"github.com/go-gcloud/gcloud/auth"
)

const (
	projectIDSentinel = "*detect-project-id*"
	envProjectID      = "GOOGLE_CLOUD_PROJECT"
)

// For testing.
var envLookupFunc = os.Getenv

// ProjectID tries to detect the project ID from the environment if the
// sentinel value, "*detect-project-id*", is sent. It looks in the following
// order:
//  1. The GOOGLE_CLOUD_PROJECT environment variable.
//  2. The project associated with the supplied credentials.
//  3. A static value if the environment is emulated.
func ProjectID(ctx context.Context, projectID, emulatorEnvVar string, creds *auth.Credentials) (string, error) {
	if projectID != projectIDSentinel {
		return projectID, nil
	}
	if id := envLookupFunc(envProjectID); id != "" {
		return id, nil
	}
	var credsProjectID string
	if creds != nil {
		credsProjectID, _ = creds.ProjectID(ctx)
	}
	if credsProjectID == "" && emulatorEnvVar != "" && envLookupFunc(emulatorEnvVar) != "" {
		return "emulated-project", nil
	}
	if credsProjectID == "" {
		return "", errors.New("unable to detect projectID, please refer to docs for DetectProjectID")
	}
	return credsProjectID, nil
}
