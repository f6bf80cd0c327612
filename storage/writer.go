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
	"net/url"

	raw "google.golang.org/api/storage/v1"
)

// NewWriter returns a storage Writer that writes to the GCS object associated
// with this ObjectHandle.
//
// A new object will be created unless an object with this name already
// exists. Otherwise any previous object with the same name will be replaced.
// The object will not be available (and any previous object will remain)
// until Close has been called.
//
// Attributes can be set on the object by modifying the returned Writer's
// fields before the first call to Write.
//
// It is the caller's responsibility to call Close when writing is done. To
// stop writing without saving the data, cancel the context.
func (o *ObjectHandle) NewWriter(ctx context.Context) *Writer {
	return &Writer{
		ctx: ctx,
		o:   o,
	}
}

// A Writer writes a Cloud Storage object.
type Writer struct {
	// ContentType is the MIME type of the object's content. If non-empty, it
	// is sent as the Content-Type of the upload. Must be set before the first
	// call to Write.
	ContentType string

	// PredefinedACL is the predefined ACL to apply to the object. Empty means
	// the access the service applies by default ("private"). Possible values
	// are listed at
	// https://cloud.google.com/storage/docs/json_api/v1/objects/insert.
	// Must be set before the first call to Write.
	PredefinedACL string

	ctx context.Context
	o   *ObjectHandle

	opened bool
	pw     *io.PipeWriter

	donec chan struct{} // closed after err and obj are set
	obj   *ObjectAttrs
	err   error
}

func (w *Writer) open() error {
	if err := w.o.validate(); err != nil {
		return err
	}
	pr, pw := io.Pipe()
	w.pw = pw
	w.opened = true
	w.donec = make(chan struct{})

	u := w.o.c.uploadEndpoint + "/b/" + url.PathEscape(w.o.bucket) +
		"/o?uploadType=media&name=" + url.QueryEscape(w.o.object)
	if w.PredefinedACL != "" {
		u += "&predefinedAcl=" + url.QueryEscape(w.PredefinedACL)
	}

	go func() {
		defer close(w.donec)

		// The upload body is consumed as it is written, so the request
		// cannot be transparently retried. RetryIdempotent therefore never
		// retries uploads.
		var obj raw.Object
		err := run(w.ctx, func() error {
			res, err := w.o.c.doRequest(w.ctx, http.MethodPost, u, pr, w.ContentType)
			if err != nil {
				return err
			}
			defer res.Body.Close()
			return json.NewDecoder(res.Body).Decode(&obj)
		}, w.o.retry, false)
		if err != nil {
			w.err = err
			pr.CloseWithError(err)
			return
		}
		w.obj = newObject(&obj)
	}()
	return nil
}

// Write appends to w. It implements the io.Writer interface.
//
// Since writes happen asynchronously, Write may return a nil error even
// though the write itself (or later) fails.
func (w *Writer) Write(p []byte) (n int, err error) {
	if w.err != nil {
		return 0, w.err
	}
	if !w.opened {
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	n, err = w.pw.Write(p)
	if err != nil {
		w.err = err
		// Preserve the error from the upload rather than the pipe.
		select {
		case <-w.donec:
			if w.err != nil {
				err = w.err
			}
		default:
		}
	}
	return n, err
}

// Close completes the write operation and flushes any buffered data.
// If Close doesn't return an error, metadata about the written object
// can be retrieved by calling Attrs.
func (w *Writer) Close() error {
	if !w.opened {
		if err := w.open(); err != nil {
			return err
		}
	}
	if err := w.pw.Close(); err != nil {
		return err
	}
	<-w.donec
	return w.err
}

// CloseWithError aborts the write operation with the provided error.
// CloseWithError always returns nil.
//
// Deprecated: cancel the context passed to NewWriter instead.
func (w *Writer) CloseWithError(err error) error {
	if !w.opened {
		return nil
	}
	return w.pw.CloseWithError(err)
}

// Attrs returns metadata about a successfully-written object.
// It's only valid to call it after Close returns nil.
func (w *Writer) Attrs() *ObjectAttrs {
	return w.obj
}
