package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDoJSON_BearerAuthAndDecode(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("Authorization = %q, want Bearer test-token", r.Header.Get("Authorization"))
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q, want application/json", r.Header.Get("Content-Type"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"job-1"}`))
	}))
	defer server.Close()

	var result struct {
		ID string `json:"id"`
	}
	err := DoJSON(context.Background(), server.Client(), http.MethodPost, server.URL, "test-token", map[string]string{"prompt": "hi"}, &result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ID != "job-1" {
		t.Errorf("ID = %q, want job-1", result.ID)
	}
}

func TestDoJSON_VendorMessageShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"flat message", `{"message":"quota exceeded"}`, "quota exceeded"},
		{"nested error message", `{"error":{"message":"bad prompt"}}`, "bad prompt"},
		{"no message", `{}`, "API error: 500"},
		{"not json", `gateway timeout`, "API error: 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			err := DoJSON(context.Background(), server.Client(), http.MethodGet, server.URL, "t", nil, nil)
			var statusErr *StatusError
			if !errors.As(err, &statusErr) {
				t.Fatalf("expected StatusError, got %v", err)
			}
			if statusErr.StatusCode != http.StatusInternalServerError {
				t.Errorf("StatusCode = %d, want 500", statusErr.StatusCode)
			}
			if statusErr.Message != tt.want {
				t.Errorf("Message = %q, want %q", statusErr.Message, tt.want)
			}
		})
	}
}

func TestDoMultipart_FieldsAndFile(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("model"); got != "veo_3_1-fast-4K" {
			t.Errorf("model = %q", got)
		}
		file, header, err := r.FormFile("input_reference")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer func() { _ = file.Close() }()
		if header.Filename != "reference.png" {
			t.Errorf("filename = %q, want reference.png", header.Filename)
		}
		_, _ = w.Write([]byte(`{"id":"job-2","status":"pending"}`))
	}))
	defer server.Close()

	fields := []MultipartField{{Name: "model", Value: "veo_3_1-fast-4K"}}
	file := &FilePart{FieldName: "input_reference", FileName: "reference.png", Data: []byte{1, 2, 3}}

	var result struct {
		ID string `json:"id"`
	}
	if err := DoMultipart(context.Background(), server.Client(), server.URL, "t", fields, file, &result); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.ID != "job-2" {
		t.Errorf("ID = %q, want job-2", result.ID)
	}
}

func TestValidateToken(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"accepted", http.StatusOK, true},
		{"not found still counts", http.StatusNotFound, true},
		{"unauthorized", http.StatusUnauthorized, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			if got := ValidateToken(context.Background(), server.Client(), server.URL, "k"); got != tt.want {
				t.Errorf("ValidateToken = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValidateToken_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	if ValidateToken(context.Background(), nil, server.URL, "k") {
		t.Error("expected network error to invalidate token")
	}
}
