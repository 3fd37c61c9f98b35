// Package client contains the HTTP client the ScanPass CLI uses to talk to
// the server.
//
// # Overview
//
// Client is the transport-agnostic contract; HTTPClient implements it over
// the JSON API. Password and visual login store the returned bearer token,
// which every protected call then sends in the Authorization header.
// Videos are uploaded as multipart/form-data in a part named "video".
//
// # Error Handling
//
// Failed responses are returned as *APIError. Its Unwrap maps the server
// error code to the sentinels in internal/common, so callers can write
// errors.Is(err, common.ErrChallengeExpired). Transport failures where the
// server could not be reached are reported as ErrUnavailable.
package client
