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
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	raw "google.golang.org/api/storage/v1"
)

// BucketHandle provides operations on a Google Cloud Storage bucket.
// Use Client.Bucket to get a handle.
type BucketHandle struct {
	c                *Client
	name             string
	acl              ACLHandle
	defaultObjectACL ACLHandle
	retry            *retryConfig
}

// Create creates the Bucket in the project.
// If attrs is nil the API defaults will be used.
//
// If projectID is empty, the project the client was constructed with is used.
func (b *BucketHandle) Create(ctx context.Context, projectID string, attrs *BucketAttrs) (err error) {
	ctx = startSpan(ctx, "Bucket.Create")
	defer func() { endSpan(ctx, err) }()

	if projectID == "" {
		projectID = b.c.projectID
	}
	if projectID == "" {
		return errors.New("storage: bucket creation requires a project ID")
	}
	var bkt *raw.Bucket
	if attrs != nil {
		bkt = attrs.toRawBucket()
	} else {
		bkt = &raw.Bucket{}
	}
	bkt.Name = b.name
	u := b.c.endpoint + "/b?project=" + url.QueryEscape(projectID)
	return run(ctx, func() error {
		return b.c.doJSON(ctx, http.MethodPost, u, bkt, nil)
	}, b.retry, true)
}

// Delete deletes the Bucket. The bucket must be empty.
func (b *BucketHandle) Delete(ctx context.Context) (err error) {
	ctx = startSpan(ctx, "Bucket.Delete")
	defer func() { endSpan(ctx, err) }()

	u := b.c.bucketURL(b.name)
	err = run(ctx, func() error {
		return b.c.doJSON(ctx, http.MethodDelete, u, nil, nil)
	}, b.retry, true)
	var e *googleapi.Error
	if errors.As(err, &e) && e.Code == http.StatusNotFound {
		return ErrBucketNotExist
	}
	return err
}

// Attrs returns the metadata for the bucket.
func (b *BucketHandle) Attrs(ctx context.Context) (attrs *BucketAttrs, err error) {
	ctx = startSpan(ctx, "Bucket.Attrs")
	defer func() { endSpan(ctx, err) }()

	u := b.c.bucketURL(b.name) + "?projection=full"
	var rb raw.Bucket
	err = run(ctx, func() error {
		return b.c.doJSON(ctx, http.MethodGet, u, nil, &rb)
	}, b.retry, true)
	var e *googleapi.Error
	if errors.As(err, &e) && e.Code == http.StatusNotFound {
		return nil, ErrBucketNotExist
	}
	if err != nil {
		return nil, err
	}
	return newBucket(&rb), nil
}

// ACL returns an ACLHandle, which provides access to the bucket's access
// control list. This controls who can list, create or overwrite the objects
// in a bucket. This call does not perform any network operations.
func (b *BucketHandle) ACL() *ACLHandle {
	return &b.acl
}

// DefaultObjectACL returns an ACLHandle, which provides access to the
// bucket's default object ACLs. These ACLs are applied to newly created
// objects in this bucket that do not have a defined ACL. This call does not
// perform any network operations.
func (b *BucketHandle) DefaultObjectACL() *ACLHandle {
	return &b.defaultObjectACL
}

// Object returns an ObjectHandle, which provides operations on the named
// object. This call does not perform any network operations such as fetching
// the object or verifying its existence.
//
// name must consist entirely of valid UTF-8-encoded runes. The full
// specification for valid object names can be found at:
//
//	https://cloud.google.com/storage/docs/naming-objects
func (b *BucketHandle) Object(name string) *ObjectHandle {
	return &ObjectHandle{
		c:      b.c,
		bucket: b.name,
		object: name,
		acl: ACLHandle{
			c:      b.c,
			bucket: b.name,
			object: name,
		},
		retry: b.retry.clone(),
	}
}

// Retryer returns a bucket handle that is configured with custom retry
// behavior as specified by the options that are passed to it. All operations
// on the new handle will use the customized retry configuration.
// Retry options set on an object handle derived from this bucket will take
// precedence over options on the bucket handle.
func (b *BucketHandle) Retryer(opts ...RetryOption) *BucketHandle {
	b2 := *b
	var retry *retryConfig
	if b.retry != nil {
		// merge the options with the existing retry
		retry = b.retry.clone()
	} else {
		retry = &retryConfig{}
	}
	for _, opt := range opts {
		opt.apply(retry)
	}
	b2.retry = retry
	b2.acl.retry = retry
	b2.defaultObjectACL.retry = retry
	return &b2
}

// Objects returns an iterator over the objects in the bucket that match the
// Query q. If q is nil, no filtering is done.
func (b *BucketHandle) Objects(ctx context.Context, q *Query) *ObjectIterator {
	it := &ObjectIterator{
		ctx:    ctx,
		bucket: b,
	}
	it.pageInfo, it.nextFunc = iterator.NewPageInfo(
		it.fetch,
		func() int { return len(it.items) },
		func() interface{} { b := it.items; it.items = nil; return b })
	if q != nil {
		it.query = *q
	}
	return it
}

// Query represents a query to filter objects from a bucket.
type Query struct {
	// Delimiter returns results in a directory-like fashion.
	// Results will contain only objects whose names, aside from the
	// prefix, do not contain delimiter. Objects whose names, aside from the
	// prefix, contain delimiter will have their name, truncated after the
	// delimiter, returned in prefixes. Duplicate prefixes are omitted.
	// Optional.
	Delimiter string

	// Prefix is the prefix filter to query objects
	// whose names begin with this prefix.
	// Optional.
	Prefix string

	// Versions indicates whether multiple versions of the same
	// object will be included in the results.
	Versions bool
}

// ObjectIterator is an iterator over the objects in a bucket.
type ObjectIterator struct {
	ctx      context.Context
	bucket   *BucketHandle
	query    Query
	pageInfo *iterator.PageInfo
	nextFunc func() error
	items    []*ObjectAttrs
}

// PageInfo supports pagination. See the google.golang.org/api/iterator
// package for details.
func (it *ObjectIterator) PageInfo() *iterator.PageInfo { return it.pageInfo }

// Next returns the next result. Its second return value is iterator.Done if
// there are no more results. Once Next returns iterator.Done, all subsequent
// calls will return iterator.Done.
//
// In addition, if Next returns an error other than iterator.Done, all
// subsequent calls will return the same error. To continue iteration, a new
// `ObjectIterator` must be created.
//
// If Query.Delimiter is non-empty, some of the ObjectAttrs returned by Next
// will have a non-empty Prefix field, and a zero value for all other fields.
// These represent prefixes.
func (it *ObjectIterator) Next() (*ObjectAttrs, error) {
	if err := it.nextFunc(); err != nil {
		return nil, err
	}
	item := it.items[0]
	it.items = it.items[1:]
	return item, nil
}

func (it *ObjectIterator) fetch(pageSize int, pageToken string) (string, error) {
	u, err := url.Parse(it.bucket.c.bucketURL(it.bucket.name) + "/o")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("projection", "full")
	if it.query.Delimiter != "" {
		q.Set("delimiter", it.query.Delimiter)
	}
	if it.query.Prefix != "" {
		q.Set("prefix", it.query.Prefix)
	}
	if it.query.Versions {
		q.Set("versions", "true")
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	if pageSize > 0 {
		q.Set("maxResults", strconv.Itoa(pageSize))
	}
	u.RawQuery = q.Encode()

	var resp raw.Objects
	err = run(it.ctx, func() error {
		resp = raw.Objects{}
		return it.bucket.c.doJSON(it.ctx, http.MethodGet, u.String(), nil, &resp)
	}, it.bucket.retry, true)
	var e *googleapi.Error
	if errors.As(err, &e) && e.Code == http.StatusNotFound {
		return "", ErrBucketNotExist
	}
	if err != nil {
		return "", err
	}
	for _, item := range resp.Items {
		it.items = append(it.items, newObject(item))
	}
	for _, prefix := range resp.Prefixes {
		it.items = append(it.items, &ObjectAttrs{Prefix: prefix})
	}
	return resp.NextPageToken, nil
}

// BucketIterator is an iterator over the buckets in a project.
type BucketIterator struct {
	// Prefix restricts the iterator to buckets whose names begin with it.
	Prefix string

	ctx       context.Context
	client    *Client
	projectID string
	buckets   []*BucketAttrs
	pageInfo  *iterator.PageInfo
	nextFunc  func() error
}

func newBucketIterator(ctx context.Context, c *Client, projectID string) *BucketIterator {
	it := &BucketIterator{
		ctx:       ctx,
		client:    c,
		projectID: projectID,
	}
	it.pageInfo, it.nextFunc = iterator.NewPageInfo(
		it.fetch,
		func() int { return len(it.buckets) },
		func() interface{} { b := it.buckets; it.buckets = nil; return b })
	return it
}

// PageInfo supports pagination. See the google.golang.org/api/iterator
// package for details.
func (it *BucketIterator) PageInfo() *iterator.PageInfo { return it.pageInfo }

// Next returns the next result. Its second return value is iterator.Done if
// there are no more results. Once Next returns iterator.Done, all subsequent
// calls will return iterator.Done.
func (it *BucketIterator) Next() (*BucketAttrs, error) {
	if err := it.nextFunc(); err != nil {
		return nil, err
	}
	b := it.buckets[0]
	it.buckets = it.buckets[1:]
	return b, nil
}

func (it *BucketIterator) fetch(pageSize int, pageToken string) (string, error) {
	u, err := url.Parse(it.client.endpoint + "/b")
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("project", it.projectID)
	q.Set("projection", "full")
	if it.Prefix != "" {
		q.Set("prefix", it.Prefix)
	}
	if pageToken != "" {
		q.Set("pageToken", pageToken)
	}
	if pageSize > 0 {
		q.Set("maxResults", strconv.Itoa(pageSize))
	}
	u.RawQuery = q.Encode()

	var resp raw.Buckets
	err = run(it.ctx, func() error {
		resp = raw.Buckets{}
		return it.client.doJSON(it.ctx, http.MethodGet, u.String(), nil, &resp)
	}, it.client.retry, true)
	if err != nil {
		return "", err
	}
	for _, item := range resp.Items {
		it.buckets = append(it.buckets, newBucket(item))
	}
	return resp.NextPageToken, nil
}

// BucketAttrs represents the metadata for a Google Cloud Storage bucket.
type BucketAttrs struct {
	// Name is the name of the bucket.
	// This field is read-only.
	Name string

	// ACL is the list of access control rules on the bucket.
	ACL []ACLRule

	// DefaultObjectACL is the list of access controls to
	// apply to new objects when no object ACL is provided.
	DefaultObjectACL []ACLRule

	// Location is the location of the bucket. It defaults to "US".
	Location string

	// StorageClass is the default storage class of the bucket. This defines
	// how objects in the bucket are stored and determines the SLA
	// and the cost of storage. Typical values are "STANDARD", "NEARLINE",
	// "COLDLINE" and "ARCHIVE". Defaults to "STANDARD".
	StorageClass string

	// Created is the creation time of the bucket.
	// This field is read-only.
	Created time.Time

	// MetaGeneration is the metadata generation of the bucket.
	// This field is read-only.
	MetaGeneration int64

	// VersioningEnabled reports whether this bucket has versioning enabled.
	VersioningEnabled bool

	// Labels are the bucket's labels.
	Labels map[string]string
}

func newBucket(b *raw.Bucket) *BucketAttrs {
	if b == nil {
		return nil
	}
	bucket := &BucketAttrs{
		Name:             b.Name,
		Location:         b.Location,
		StorageClass:     b.StorageClass,
		Created:          convertTime(b.TimeCreated),
		MetaGeneration:   b.Metageneration,
		Labels:           b.Labels,
		ACL:              toBucketACLRules(b.Acl),
		DefaultObjectACL: toObjectACLRules(b.DefaultObjectAcl),
	}
	if b.Versioning != nil {
		bucket.VersioningEnabled = b.Versioning.Enabled
	}
	return bucket
}

func (b *BucketAttrs) toRawBucket() *raw.Bucket {
	var v *raw.BucketVersioning
	if b.VersioningEnabled {
		v = &raw.BucketVersioning{Enabled: true}
	}
	var labels map[string]string
	if len(b.Labels) > 0 {
		labels = make(map[string]string, len(b.Labels))
		for k, v := range b.Labels {
			labels[k] = v
		}
	}
	return &raw.Bucket{
		Name:             b.Name,
		Location:         b.Location,
		StorageClass:     b.StorageClass,
		Acl:              toRawBucketACL(b.ACL),
		DefaultObjectAcl: toRawObjectACL(b.DefaultObjectACL),
		Versioning:       v,
		Labels:           labels,
	}
}

func convertTime(t string) time.Time {
	var r time.Time
	if t != "" {
		r, _ = time.Parse(time.RFC3339, t)
	}
	return r
}

