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
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/api/iterator"
	raw "google.golang.org/api/storage/v1"
)

func TestBucketCreate(t *testing.T) {
	ctx := context.Background()
	var gotPath, gotProject string
	var gotBody raw.Bucket
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method: got %s, want POST", r.Method)
		}
		gotPath = r.URL.Path
		gotProject = r.URL.Query().Get("project")
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decoding request body: %v", err)
		}
		json.NewEncoder(w).Encode(&raw.Bucket{Name: gotBody.Name})
	}))

	attrs := &BucketAttrs{
		Location:          "US-EAST1",
		VersioningEnabled: true,
		Labels:            map[string]string{"team": "data"},
	}
	if err := c.Bucket("new-bucket").Create(ctx, "my-project", attrs); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if want := "/storage/v1/b"; gotPath != want {
		t.Errorf("path: got %q, want %q", gotPath, want)
	}
	if want := "my-project"; gotProject != want {
		t.Errorf("project: got %q, want %q", gotProject, want)
	}
	if gotBody.Name != "new-bucket" {
		t.Errorf("body name: got %q, want %q", gotBody.Name, "new-bucket")
	}
	if gotBody.Versioning == nil || !gotBody.Versioning.Enabled {
		t.Errorf("body versioning: got %+v, want enabled", gotBody.Versioning)
	}
	if gotBody.Location != "US-EAST1" {
		t.Errorf("body location: got %q", gotBody.Location)
	}
}

func TestBucketCreateMissingProject(t *testing.T) {
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("unexpected request")
	}))
	if err := c.Bucket("b").Create(context.Background(), "", nil); err == nil {
		t.Error("Create with no project ID: got nil, want error")
	}
}

func TestBucketAttrs(t *testing.T) {
	ctx := context.Background()
	created := time.Date(2023, 4, 5, 6, 7, 8, 0, time.UTC)
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.URL.Path, "/storage/v1/b/my-bucket"; got != want {
			t.Errorf("path: got %q, want %q", got, want)
		}
		if got, want := r.URL.Query().Get("projection"), "full"; got != want {
			t.Errorf("projection: got %q, want %q", got, want)
		}
		json.NewEncoder(w).Encode(&raw.Bucket{
			Name:           "my-bucket",
			Location:       "US",
			StorageClass:   "STANDARD",
			TimeCreated:    created.Format(time.RFC3339),
			Metageneration: 3,
			Versioning:     &raw.BucketVersioning{Enabled: true},
			Labels:         map[string]string{"env": "prod"},
			Acl: []*raw.BucketAccessControl{
				{Entity: "allUsers", Role: "READER"},
			},
			DefaultObjectAcl: []*raw.ObjectAccessControl{
				{Entity: "user-owner@example.com", Role: "OWNER", Email: "owner@example.com"},
			},
		})
	}))

	got, err := c.Bucket("my-bucket").Attrs(ctx)
	if err != nil {
		t.Fatalf("Attrs: %v", err)
	}
	want := &BucketAttrs{
		Name:              "my-bucket",
		Location:          "US",
		StorageClass:      "STANDARD",
		Created:           created,
		MetaGeneration:    3,
		VersioningEnabled: true,
		Labels:            map[string]string{"env": "prod"},
		ACL:               []ACLRule{{Entity: AllUsers, Role: RoleReader}},
		DefaultObjectACL: []ACLRule{
			{Entity: "user-owner@example.com", Role: RoleOwner, Email: "owner@example.com"},
		},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("Attrs: got=-, want=+:\n%s", diff)
	}
}

func TestBucketNotExist(t *testing.T) {
	ctx := context.Background()
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error":{"code":404,"message":"not found"}}`)
	}))

	if _, err := c.Bucket("nope").Attrs(ctx); !errors.Is(err, ErrBucketNotExist) {
		t.Errorf("Attrs: got %v, want ErrBucketNotExist", err)
	}
	if err := c.Bucket("nope").Delete(ctx); !errors.Is(err, ErrBucketNotExist) {
		t.Errorf("Delete: got %v, want ErrBucketNotExist", err)
	}
}

func TestBucketDelete(t *testing.T) {
	ctx := context.Background()
	var gotMethod, gotPath string
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))

	if err := c.Bucket("my-bucket").Delete(ctx); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method: got %q, want DELETE", gotMethod)
	}
	if want := "/storage/v1/b/my-bucket"; gotPath != want {
		t.Errorf("path: got %q, want %q", gotPath, want)
	}
}

func TestBuckets(t *testing.T) {
	ctx := context.Background()
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got, want := r.URL.Query().Get("project"), "my-project"; got != want {
			t.Errorf("project: got %q, want %q", got, want)
		}
		switch r.URL.Query().Get("pageToken") {
		case "":
			json.NewEncoder(w).Encode(&raw.Buckets{
				Items:         []*raw.Bucket{{Name: "a"}, {Name: "b"}},
				NextPageToken: "page2",
			})
		case "page2":
			json.NewEncoder(w).Encode(&raw.Buckets{
				Items: []*raw.Bucket{{Name: "c"}},
			})
		default:
			t.Errorf("unexpected page token %q", r.URL.Query().Get("pageToken"))
		}
	}))

	var names []string
	it := c.Buckets(ctx, "my-project")
	for {
		b, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		names = append(names, b.Name)
	}
	if want := []string{"a", "b", "c"}; !cmp.Equal(names, want) {
		t.Errorf("bucket names: got %v, want %v", names, want)
	}
}

func TestBucketsDefaultProject(t *testing.T) {
	ctx := context.Background()
	c := mockClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(&raw.Buckets{})
	}))
	c.projectID = "client-project"

	it := c.Buckets(ctx, "")
	if _, err := it.Next(); err != iterator.Done {
		t.Fatalf("Next: got %v, want iterator.Done", err)
	}
	if it.projectID != "client-project" {
		t.Errorf("projectID: got %q, want %q", it.projectID, "client-project")
	}
}
