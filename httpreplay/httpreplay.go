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

// Package httpreplay provides an API for recording and replaying traffic
// from HTTP-based Google API clients.
//
// To record a test, use a Recorder as the transport of the client under
// test, run the test, and close the Recorder to persist the exchanges as a
// HAR file. Credentials and other sensitive headers are scrubbed before
// anything is written.
//
// To replay, construct a Replayer from the same file and use it as the
// transport. Requests are matched by method, URL and body; matched requests
// return the recorded response without touching the network.
package httpreplay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/martian/v3/har"
)

// Headers removed from recorded requests. They are either secret, transient,
// or missing on replay.
var defaultRemoveRequestHeaders = []string{
	"Authorization",
	"Proxy-Authorization",
	"Connection",
	"Content-Type", // may contain a random multipart boundary; kept in PostData
	"Date",
	"Host",
	"Transfer-Encoding",
	"Via",
	"X-Forwarded-*",
	"X-Cloud-Trace-Context",
	"X-Goog-Api-Client",
}

// Headers whose values are replaced with "REDACTED" in recordings: their
// presence matters for the test but their value is a secret.
var defaultRedactHeaders = []string{
	"X-Goog-*Encryption-Key",
}

// A Recorder is an http.RoundTripper that delegates to a base transport and
// records every exchange. Close writes the recording as a HAR file.
type Recorder struct {
	filename string
	base     http.RoundTripper

	mu      sync.Mutex
	entries []*har.Entry
	redact  []*regexp.Regexp
	remove  []*regexp.Regexp
}

// NewRecorder creates a recorder that logs round trips through base to the
// named file. If base is nil, http.DefaultTransport is used.
func NewRecorder(filename string, base http.RoundTripper) (*Recorder, error) {
	if base == nil {
		base = http.DefaultTransport
	}
	r := &Recorder{
		filename: filename,
		base:     base,
	}
	for _, h := range defaultRedactHeaders {
		r.redact = append(r.redact, pattern(h))
	}
	for _, h := range defaultRemoveRequestHeaders {
		r.remove = append(r.remove, pattern(h))
	}
	// Fail early if the file cannot be created.
	f, err := os.Create(filename)
	if err != nil {
		return nil, err
	}
	return r, f.Close()
}

// RoundTrip implements http.RoundTripper.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	var reqBody []byte
	if req.Body != nil {
		var err error
		reqBody, err = snapshotBody(&req.Body)
		if err != nil {
			return nil, err
		}
	}
	res, err := r.base.RoundTrip(req)
	if err != nil {
		return nil, err
	}
	resBody, err := snapshotBody(&res.Body)
	if err != nil {
		return nil, err
	}

	hreq := &har.Request{
		Method:      req.Method,
		URL:         req.URL.String(),
		HTTPVersion: req.Proto,
		Headers:     r.scrubHeaders(req.Header),
	}
	if len(reqBody) > 0 {
		hreq.PostData = &har.PostData{
			MimeType: req.Header.Get("Content-Type"),
			Text:     string(reqBody),
		}
	}
	hres := &har.Response{
		Status:      res.StatusCode,
		StatusText:  res.Status,
		HTTPVersion: res.Proto,
		Headers:     toHARHeaders(res.Header),
		Content: &har.Content{
			Size:     int64(len(resBody)),
			MimeType: res.Header.Get("Content-Type"),
			Text:     resBody,
		},
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, &har.Entry{
		ID:              strconv.Itoa(len(r.entries)),
		StartedDateTime: time.Now().UTC(),
		Request:         hreq,
		Response:        hres,
	})
	return res, nil
}

// Close writes the recording to the file given at construction.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := &har.HAR{
		Log: &har.Log{
			Version: "1.2",
			Creator: &har.Creator{Name: "gcloud-httpreplay"},
			Entries: r.entries,
		},
	}
	b, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(r.filename, b, 0644)
}

func (r *Recorder) scrubHeaders(hs http.Header) []har.Header {
	var out []har.Header
	for k, vs := range hs {
		switch {
		case match(k, r.redact):
			out = append(out, har.Header{Name: k, Value: "REDACTED"})
		case match(k, r.remove):
			// skip
		default:
			for _, v := range vs {
				out = append(out, har.Header{Name: k, Value: v})
			}
		}
	}
	return out
}

func toHARHeaders(hs http.Header) []har.Header {
	var out []har.Header
	for k, vs := range hs {
		for _, v := range vs {
			out = append(out, har.Header{Name: k, Value: v})
		}
	}
	return out
}

func snapshotBody(body *io.ReadCloser) ([]byte, error) {
	data, err := io.ReadAll(*body)
	if err != nil {
		return nil, err
	}
	(*body).Close()
	*body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

// Convert a pattern into a regexp.
// A pattern is like a literal regexp anchored on both ends, with only one
// non-literal character: "*", which matches zero or more characters.
func pattern(p string) *regexp.Regexp {
	q := regexp.QuoteMeta(p)
	q = "^" + strings.Replace(q, `\*`, `.*`, -1) + "$"
	return regexp.MustCompile(q)
}

func match(s string, res []*regexp.Regexp) bool {
	for _, re := range res {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// A Replayer is an http.RoundTripper that serves responses from a recording
// made with a Recorder, without any network access.
type Replayer struct {
	mu    sync.Mutex
	calls []*call
}

// A call is an HTTP request and its matching response.
type call struct {
	req     *har.Request
	reqBody *requestBody // parsed request body
	res     *har.Response
}

// NewReplayer creates a replayer that reads from the named HAR file.
func NewReplayer(filename string) (*Replayer, error) {
	calls, err := readLog(filename)
	if err != nil {
		return nil, err
	}
	return &Replayer{calls: calls}, nil
}

func readLog(filename string) ([]*call, error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	var h har.HAR
	if err := json.Unmarshal(b, &h); err != nil {
		return nil, err
	}
	if h.Log == nil {
		return nil, errors.New("httpreplay: malformed recording: no log")
	}
	var calls []*call
	for _, e := range h.Log.Entries {
		if e.Request == nil || e.Response == nil {
			return nil, fmt.Errorf("httpreplay: entry %s is missing a request or response", e.ID)
		}
		reqBody, err := newRequestBodyFromHAR(e.Request)
		if err != nil {
			return nil, err
		}
		calls = append(calls, &call{e.Request, reqBody, e.Response})
	}
	return calls, nil
}

// RoundTrip implements http.RoundTripper. Each recorded exchange is consumed
// by at most one request.
func (r *Replayer) RoundTrip(req *http.Request) (*http.Response, error) {
	reqBody, err := newRequestBodyFromHTTP(req)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, c := range r.calls {
		if c == nil {
			continue
		}
		if requestsMatch(req, reqBody, c.req, c.reqBody) {
			r.calls[i] = nil // consume this call so it is not reused
			res := harResponseToHTTPResponse(c.res)
			res.Request = req
			return res, nil
		}
	}
	return nil, fmt.Errorf("httpreplay: no matching request for %s %s", req.Method, req.URL)
}

// Close is a no-op; it exists for symmetry with Recorder.Close.
func (r *Replayer) Close() error {
	return nil
}

// requestsMatch reports whether the incoming request matches the candidate
// recorded request.
func requestsMatch(in *http.Request, inBody *requestBody, cand *har.Request, candBody *requestBody) bool {
	if in.Method != cand.Method {
		return false
	}
	if in.URL.String() != cand.URL {
		return false
	}
	return inBody.equal(candBody)
}

// harResponseToHTTPResponse converts a HAR response to a Go http.Response.
// HAR (HTTP Archive) is a standard for storing HTTP interactions.
// See http://www.softwareishard.com/blog/har-12-spec.
func harResponseToHTTPResponse(hr *har.Response) *http.Response {
	header := http.Header{}
	for _, h := range hr.Headers {
		header.Add(h.Name, h.Value)
	}
	var body []byte
	if hr.Content != nil {
		body = hr.Content.Text
	}
	return &http.Response{
		StatusCode:    hr.Status,
		Status:        hr.StatusText,
		Proto:         hr.HTTPVersion,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
	}
}

// A requestBody represents the body of a request. If the content type is
// multipart, the body is split into parts.
//
// Replay needs to understand multipart bodies because the boundaries are
// generated randomly, so the entire bodies cannot be compared for equality.
type requestBody struct {
	mediaType string   // the media type part of the Content-Type header
	parts     [][]byte // the parts of the body, or just a single []byte if not multipart
}

func newRequestBodyFromHTTP(req *http.Request) (*requestBody, error) {
	if req.Body == nil {
		return nil, nil
	}
	defer req.Body.Close()
	return newRequestBody(req.Header.Get("Content-Type"), req.Body)
}

func newRequestBodyFromHAR(req *har.Request) (*requestBody, error) {
	if req.PostData == nil {
		return nil, nil
	}
	return newRequestBody(req.PostData.MimeType, strings.NewReader(req.PostData.Text))
}

// newRequestBody parses the Content-Type header, reads the body, and splits
// it into parts if necessary.
func newRequestBody(contentType string, body io.Reader) (*requestBody, error) {
	if contentType == "" {
		// No content-type header. There should not be a body.
		if _, err := body.Read(make([]byte, 1)); err != io.EOF {
			return nil, errors.New("httpreplay: no Content-Type, but body")
		}
		return nil, nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return nil, err
	}
	rb := &requestBody{mediaType: mediaType}
	if strings.HasPrefix(mediaType, "multipart/") {
		mr := multipart.NewReader(body, params["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, err
			}
			part, err := io.ReadAll(p)
			if err != nil {
				return nil, err
			}
			rb.parts = append(rb.parts, part)
		}
	} else {
		b, err := io.ReadAll(body)
		if err != nil {
			return nil, err
		}
		rb.parts = [][]byte{b}
	}
	return rb, nil
}

func (r1 *requestBody) equal(r2 *requestBody) bool {
	if r1 == nil || r2 == nil {
		return r1 == r2
	}
	if r1.mediaType != r2.mediaType {
		return false
	}
	if len(r1.parts) != len(r2.parts) {
		return false
	}
	for i, p1 := range r1.parts {
		if !bytes.Equal(p1, r2.parts[i]) {
			return false
		}
	}
	return true
}
