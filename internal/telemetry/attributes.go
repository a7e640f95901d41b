// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Span attribute keys.
const (
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	URLFullKey        = "url.full"

	CourseIDKey = "course.id"
	ModuleIDKey = "course.module_id"
	TestIDKey   = "course.test_id"

	MediaIDKey      = "media.id"
	MediaPhaseKey   = "media.phase"
	MediaQualityKey = "media.quality"

	ObjectKeyKey  = "object.key"
	ObjectSizeKey = "object.size"

	ErrorKindKey = "error.kind"
)

// CallAttributes describe an API call before its response is known.
func CallAttributes(method, route string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
	}
}

// HTTPAttributes describe a completed API call. The concrete URL is left out
// because routes carry the identifiers.
func HTTPAttributes(method, route string, statusCode int) []attribute.KeyValue {
	return append(CallAttributes(method, route), attribute.Int(HTTPStatusCodeKey, statusCode))
}

// TransferAttributes describe an upload. sanitizedURL must already have its
// query stripped; presigned URLs carry the signature there.
func TransferAttributes(objectKey string, size int64, sanitizedURL string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(ObjectKeyKey, objectKey),
		attribute.Int64(ObjectSizeKey, size),
	}
	if sanitizedURL != "" {
		attrs = append(attrs, attribute.String(URLFullKey, sanitizedURL))
	}
	return attrs
}

// MediaAttributes skips empty values.
func MediaAttributes(courseID, mediaID, quality string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 3)
	if courseID != "" {
		attrs = append(attrs, attribute.String(CourseIDKey, courseID))
	}
	if mediaID != "" {
		attrs = append(attrs, attribute.String(MediaIDKey, mediaID))
	}
	if quality != "" {
		attrs = append(attrs, attribute.String(MediaQualityKey, quality))
	}
	return attrs
}

// PhaseAttribute records the processing phase observed by a status poll.
func PhaseAttribute(phase string) attribute.KeyValue {
	return attribute.String(MediaPhaseKey, phase)
}

// KindAttribute records a classified failure kind, such as "rejected" or
// "orphaned_upload".
func KindAttribute(kind string) attribute.KeyValue {
	return attribute.String(ErrorKindKey, kind)
}
