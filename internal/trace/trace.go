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

// Package trace supports OpenTelemetry tracing for the service packages in
// this module.
package trace

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/status"
)

// TracerName is the name of the tracer spans in this module are created
// under.
const TracerName = "github.com/go-gcloud/gcloud"

// StartSpan adds a span to the trace with the given name.
func StartSpan(ctx context.Context, name string) context.Context {
	ctx, _ = otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name)
	return ctx
}

// EndSpan ends a span with the given error.
func EndSpan(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if err != nil {
		span.SetStatus(otelcodes.Error, toOpenTelemetryStatusDescription(err))
		span.RecordError(err)
	}
	span.End()
}

// toOpenTelemetryStatusDescription converts an error to an OpenTelemetry
// status description, preferring the message carried by a typed API error
// over its full rendering.
func toOpenTelemetryStatusDescription(err error) string {
	var err2 *googleapi.Error
	if ok := errors.As(err, &err2); ok {
		return err2.Message
	}
	if s, ok := status.FromError(err); ok {
		return s.Message()
	}
	return err.Error()
}

// TracePrintf retrieves the current span from context and adds the given
// attributes as an event on it.
func TracePrintf(ctx context.Context, attrMap map[string]interface{}, format string, args ...interface{}) {
	var attrs []attribute.KeyValue
	for k, v := range attrMap {
		var a attribute.KeyValue
		switch v := v.(type) {
		case string:
			a = attribute.String(k, v)
		case bool:
			a = attribute.Bool(k, v)
		case int:
			a = attribute.Int(k, v)
		case int64:
			a = attribute.Int64(k, v)
		default:
			a = attribute.String(k, fmt.Sprintf("%#v", v))
		}
		attrs = append(attrs, a)
	}
	trace.SpanFromContext(ctx).AddEvent(fmt.Sprintf(format, args...), trace.WithAttributes(attrs...))
}
