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

package storage

import (
	"context"
	"io"
	"net/http"
	"testing"
)

func TestNewReader(t *testing.T) {
	ctx := context.Background()
	content := "hello, world"
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.URL.Path, "/storage/v1/b/my-bucket/o/file.txt"; got != want {
			t.Errorf("path: got %q, want %q", got, want)
		}
		if got, want := r.URL.Query().Get("alt"), "media"; got != want {
			t.Errorf("alt: got %q, want %q", got, want)
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte(content))
	}))

	r, err := c.Bucket("my-bucket").Object("file.txt").NewReader(ctx)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}
	defer r.Close()

	if got, want := r.Size(), int64(len(content)); got != want {
		t.Errorf("Size: got %d, want %d", got, want)
	}
	if got, want := r.Attrs.ContentType, "text/plain"; got != want {
		t.Errorf("ContentType: got %q, want %q", got, want)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading object: %v", err)
	}
	if string(b) != content {
		t.Errorf("content: got %q, want %q", b, content)
	}
	if got := r.Remain(); got != 0 {
		t.Errorf("Remain after full read: got %d, want 0", got)
	}
}
