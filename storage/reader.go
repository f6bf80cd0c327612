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
	"io"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ReaderObjectAttrs are attributes about the object being read. These are
// populated during the New call. This struct only holds a subset of object
// attributes: to get the full set of attributes, use ObjectHandle.Attrs.
type ReaderObjectAttrs struct {
	// Size is the length of the object's content.
	Size int64

	// ContentType is the MIME type of the object's content.
	ContentType string

	// ContentEncoding is the encoding of the object's content.
	ContentEncoding string

	// CacheControl specifies whether and for how long browser and Internet
	// caches are allowed to cache your objects.
	CacheControl string

	// LastModified is the time that the object was last modified.
	LastModified string
}

// NewReader creates a new Reader to read the contents of the object.
// ErrObjectNotExist will be returned if the object is not found.
//
// The caller must call Close on the returned Reader when done reading.
func (o *ObjectHandle) NewReader(ctx context.Context) (r *Reader, err error) {
	ctx = startSpan(ctx, "Object.NewReader")
	defer func() { endSpan(ctx, err) }()

	if err := o.validate(); err != nil {
		return nil, err
	}
	u := o.c.bucketURL(o.bucket, "o", o.object) + "?alt=media"

	var res *http.Response
	err = run(ctx, func() error {
		res, err = o.c.doRequest(ctx, http.MethodGet, u, nil, "")
		return err
	}, o.retry, true)
	var e *googleapi.Error
	if errors.As(err, &e) && e.Code == http.StatusNotFound {
		return nil, ErrObjectNotExist
	}
	if err != nil {
		return nil, err
	}
	return &Reader{
		Attrs: ReaderObjectAttrs{
			Size:            res.ContentLength,
			ContentType:     res.Header.Get("Content-Type"),
			ContentEncoding: res.Header.Get("Content-Encoding"),
			CacheControl:    res.Header.Get("Cache-Control"),
			LastModified:    res.Header.Get("Last-Modified"),
		},
		body:   res.Body,
		remain: res.ContentLength,
	}, nil
}

// Reader reads a Cloud Storage object.
// It implements io.Reader.
type Reader struct {
	// Attrs are attributes of the object being read.
	Attrs ReaderObjectAttrs

	body   io.ReadCloser
	remain int64
}

// Close closes the Reader. It must be called when done reading.
func (r *Reader) Close() error {
	return r.body.Close()
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.body.Read(p)
	if r.remain != -1 {
		r.remain -= int64(n)
	}
	return n, err
}

// Size returns the size of the object in bytes.
// The returned value is always the same and is not affected by
// calls to Read or Close.
func (r *Reader) Size() int64 {
	return r.Attrs.Size
}

// Remain returns the number of bytes left to read, or -1 if unknown.
func (r *Reader) Remain() int64 {
	return r.remain
}
