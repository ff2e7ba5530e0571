package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

// StatusError is returned for non-2xx vendor responses. It carries the
// vendor's message when one is present, else the HTTP status text.
type StatusError struct {
	// StatusCode is the HTTP status code of the response.
	StatusCode int
	// Message is the vendor error message or a generic "API error" fallback.
	Message string
}

func (e *StatusError) Error() string {
	return e.Message
}

// vendorMessage extracts an error message from the common vendor error
// shapes: {"message": "..."} or {"error": {"message": "..."}}.
func vendorMessage(body []byte) string {
	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	if payload.Message != "" {
		return payload.Message
	}
	return payload.Error.Message
}

// newStatusError builds a StatusError from a non-2xx response body.
func newStatusError(statusCode int, body []byte) *StatusError {
	msg := vendorMessage(body)
	if msg == "" {
		msg = fmt.Sprintf("API error: %d", statusCode)
	}
	return &StatusError{StatusCode: statusCode, Message: msg}
}

// DoJSON performs a JSON request with bearer auth and decodes the response
// into result. Non-2xx responses are surfaced as a *StatusError; no retry is
// performed here.
func DoJSON(ctx context.Context, client *http.Client, method, url, token string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("provider: marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return fmt.Errorf("provider: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return do(client, req, result)
}

// MultipartField is one form field of a multipart create request.
type MultipartField struct {
	Name  string
	Value string
}

// FilePart is an optional binary part of a multipart create request.
type FilePart struct {
	FieldName string
	FileName  string
	Data      []byte
}

// DoMultipart performs a multipart/form-data POST with bearer auth and
// decodes the response into result. file may be nil for text-only requests.
func DoMultipart(ctx context.Context, client *http.Client, url, token string, fields []MultipartField, file *FilePart, result any) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for _, f := range fields {
		if err := writer.WriteField(f.Name, f.Value); err != nil {
			return fmt.Errorf("provider: write form field %s: %w", f.Name, err)
		}
	}

	if file != nil {
		part, err := writer.CreateFormFile(file.FieldName, file.FileName)
		if err != nil {
			return fmt.Errorf("provider: create form file: %w", err)
		}
		if _, err := part.Write(file.Data); err != nil {
			return fmt.Errorf("provider: write form file: %w", err)
		}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("provider: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &buf)
	if err != nil {
		return fmt.Errorf("provider: create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	return do(client, req, result)
}

// do executes a prepared request and decodes a 2xx JSON body into result.
func do(client *http.Client, req *http.Request, result any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("provider: request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("provider: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newStatusError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("provider: unmarshal response: %w", err)
		}
	}

	return nil
}
