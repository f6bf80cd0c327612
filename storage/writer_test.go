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
	"encoding/json"
	"io"
	"net/http"
	"testing"

	raw "google.golang.org/api/storage/v1"
)

func TestWriter(t *testing.T) {
	ctx := context.Background()
	content := "it was the best of times"
	var gotPath, gotContentType string
	var gotQuery map[string][]string
	var gotBody []byte
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s, want POST", r.Method)
		}
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotContentType = r.Header.Get("Content-Type")
		var err error
		gotBody, err = io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading upload body: %v", err)
		}
		json.NewEncoder(w).Encode(&raw.Object{
			Bucket: "my-bucket",
			Name:   "file.txt",
			Size:   uint64(len(gotBody)),
		})
	}))

	w := c.Bucket("my-bucket").Object("file.txt").NewWriter(ctx)
	w.ContentType = "text/plain"
	w.PredefinedACL = "publicRead"
	if _, err := io.WriteString(w, content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	if want := "/upload/storage/v1/b/my-bucket/o"; gotPath != want {
		t.Errorf("path: got %q, want %q", gotPath, want)
	}
	for k, want := range map[string]string{
		"uploadType":    "media",
		"name":          "file.txt",
		"predefinedAcl": "publicRead",
	} {
		if got := gotQuery[k]; len(got) != 1 || got[0] != want {
			t.Errorf("query %s: got %v, want %q", k, got, want)
		}
	}
	if gotContentType != "text/plain" {
		t.Errorf("Content-Type: got %q, want %q", gotContentType, "text/plain")
	}
	if string(gotBody) != content {
		t.Errorf("uploaded body: got %q, want %q", gotBody, content)
	}
	attrs := w.Attrs()
	if attrs == nil || attrs.Size != int64(len(content)) {
		t.Errorf("Attrs: got %+v, want size %d", attrs, len(content))
	}
}

func TestWriterError(t *testing.T) {
	ctx := context.Background()
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":{"code":403,"message":"forbidden"}}`)
	}))

	w := c.Bucket("my-bucket").Object("file.txt").NewWriter(ctx)
	io.WriteString(w, "data")
	if err := w.Close(); err == nil {
		t.Error("Close: got nil, want error")
	}
}

func TestWriterValidate(t *testing.T) {
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))
	w := c.Bucket("").Object("").NewWriter(context.Background())
	if _, err := w.Write([]byte("x")); err == nil {
		t.Error("Write with empty names: got nil, want error")
	}
}
