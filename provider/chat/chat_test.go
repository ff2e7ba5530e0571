package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func chatServer(t *testing.T, content string, check func(completionRequest)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %q, want /chat/completions", r.URL.Path)
		}
		var body completionRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if check != nil {
			check(body)
		}
		reply := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(reply)
	}))
}

func TestNew_RequiresBaseURL(t *testing.T) {
	if _, err := New(""); !errors.Is(err, ErrBaseURLRequired) {
		t.Errorf("err = %v, want ErrBaseURLRequired", err)
	}
}

func TestOptimize(t *testing.T) {
	server := chatServer(t, "a majestic red fox at golden hour, 85mm lens", func(body completionRequest) {
		if body.Model != DefaultModel {
			t.Errorf("model = %q", body.Model)
		}
		if body.Temperature != 0.7 {
			t.Errorf("temperature = %v, want 0.7", body.Temperature)
		}
		if body.MaxTokens != 500 {
			t.Errorf("max_tokens = %d, want 500", body.MaxTokens)
		}
		if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[1].Content != "a fox" {
			t.Errorf("messages = %+v", body.Messages)
		}
	})
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := client.Optimize(context.Background(), "tok", "a fox")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a majestic red fox at golden hour, 85mm lens" {
		t.Errorf("Optimize = %q", got)
	}
}

func TestOptimize_EmptyReplyReturnsInput(t *testing.T) {
	server := chatServer(t, "", nil)
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := client.Optimize(context.Background(), "tok", "a fox")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "a fox" {
		t.Errorf("Optimize = %q, want original prompt back", got)
	}
}

func TestOptimize_TransportErrorPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := client.Optimize(context.Background(), "tok", "a fox"); err == nil {
		t.Error("expected error on 502 reply")
	}
}

func TestBatchOptimize_SeparatorSplit(t *testing.T) {
	server := chatServer(t, "first variant\n---\nsecond variant\n---\nthird variant", func(body completionRequest) {
		if body.Temperature != 0.9 {
			t.Errorf("temperature = %v, want 0.9", body.Temperature)
		}
		if body.MaxTokens != 2000 {
			t.Errorf("max_tokens = %d, want 2000", body.MaxTokens)
		}
	})
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := client.BatchOptimize(context.Background(), "tok", "a fox")
	want := []string{"first variant", "second variant", "third variant"}
	if len(got) != len(want) {
		t.Fatalf("got %d prompts, want %d: %v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("prompt[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBatchOptimize_CapsAtFive(t *testing.T) {
	server := chatServer(t, "one---two---three---four---five---six---seven", nil)
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := client.BatchOptimize(context.Background(), "tok", "a fox")
	if len(got) != 5 {
		t.Errorf("got %d prompts, want capped at 5: %v", len(got), got)
	}
}

func TestBatchOptimize_LineFallback(t *testing.T) {
	content := "a fox in morning mist over a field\na fox leaping across a frozen stream\na fox curled up under autumn leaves"
	server := chatServer(t, content, nil)
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := client.BatchOptimize(context.Background(), "tok", "a fox")
	if len(got) != 3 {
		t.Fatalf("got %d prompts, want 3 from line split: %v", len(got), got)
	}
	if got[1] != "a fox leaping across a frozen stream" {
		t.Errorf("prompt[1] = %q", got[1])
	}
}

func TestBatchOptimize_SinglePromptPadsWithInput(t *testing.T) {
	server := chatServer(t, "just one long detailed variant prompt", nil)
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := client.BatchOptimize(context.Background(), "tok", "a fox")
	if len(got) != 5 {
		t.Fatalf("got %d prompts, want 5: %v", len(got), got)
	}
	if got[0] != "just one long detailed variant prompt" {
		t.Errorf("prompt[0] = %q", got[0])
	}
	for i := 1; i < 5; i++ {
		if got[i] != "a fox" {
			t.Errorf("prompt[%d] = %q, want input padding", i, got[i])
		}
	}
}

func TestBatchOptimize_TransportErrorRepeatsInput(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := New(server.URL, WithHTTPClient(server.Client()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := client.BatchOptimize(context.Background(), "tok", "a fox")
	if len(got) != 5 {
		t.Fatalf("got %d prompts, want 5: %v", len(got), got)
	}
	for i, p := range got {
		if p != "a fox" {
			t.Errorf("prompt[%d] = %q, want input copy", i, p)
		}
	}
}
