// Package netx holds small HTTP helpers shared by the client.
package netx

import (
	"bytes"
	"errors"
	"fmt"
	"mime/multipart"
	"net"
	"net/url"
)

// MultipartBody encodes fields and one file part named fileField into a
// multipart/form-data body. It returns the body and its Content-Type.
func MultipartBody(fields map[string]string, fileField, fileName string, file []byte) (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", k, err)
		}
	}

	fw, err := mw.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, "", fmt.Errorf("create file part: %w", err)
	}
	if _, err := fw.Write(file); err != nil {
		return nil, "", fmt.Errorf("write file part: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}

	return &buf, mw.FormDataContentType(), nil
}

// IsUnavailable reports whether err means the server could not be reached
// at all, as opposed to an HTTP error response.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Timeout() || errors.As(urlErr.Err, &opErr)
	}
	return false
}
