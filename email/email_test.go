package email

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestPostmarkSend(t *testing.T) {
	var got postmarkRequest
	var token, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		token = r.Header.Get(postmarkAuthHeader)
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client, err := NewPostmark(PostmarkConfig{BaseURL: srv.URL, Sender: "no-reply@example.com", Token: "server-token"})
	if err != nil {
		t.Fatalf("NewPostmark: %v", err)
	}
	if err := client.Send(context.Background(), "alice@example.com", "Your sign-in code", "code 123456"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if path != "/email" || token != "server-token" {
		t.Fatalf("unexpected request path=%q token=%q", path, token)
	}
	want := postmarkRequest{
		From:          "no-reply@example.com",
		To:            "alice@example.com",
		Subject:       "Your sign-in code",
		HtmlBody:      "code 123456",
		TextBody:      "code 123456",
		MessageStream: "outbound",
	}
	if got != want {
		t.Fatalf("payload = %+v, want %+v", got, want)
	}
}

func TestPostmarkNon2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client, _ := NewPostmark(PostmarkConfig{BaseURL: srv.URL, Sender: "s@example.com", Token: "t"})
	if err := client.Send(context.Background(), "a@example.com", "s", "b"); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}

func TestPostmarkUnreachableIsError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, _ := NewPostmark(PostmarkConfig{BaseURL: url, Sender: "s@example.com", Token: "t"})
	if err := client.Send(context.Background(), "a@example.com", "s", "b"); !errors.Is(err, ErrDelivery) {
		t.Fatalf("expected ErrDelivery, got %v", err)
	}
}

func TestNewPostmarkValidation(t *testing.T) {
	cases := []PostmarkConfig{
		{BaseURL: "not a url", Sender: "s", Token: "t"},
		{BaseURL: "https://api.postmarkapp.com", Token: "t"},
		{BaseURL: "https://api.postmarkapp.com", Sender: "s"},
	}
	for i, cfg := range cases {
		if _, err := NewPostmark(cfg); err == nil {
			t.Fatalf("case %d: expected error", i)
		}
	}
}

func TestRecorder(t *testing.T) {
	r := NewRecorder()
	ctx := context.Background()

	_ = r.Send(ctx, "a@example.com", "s", "Your verification code is 042917. It expires in 10 minutes.")
	_ = r.Send(ctx, "b@example.com", "s", "Your verification code is 111111.")

	if code, ok := r.LastCode("a@example.com"); !ok || code != "042917" {
		t.Fatalf("LastCode = %q, %v", code, ok)
	}
	if _, ok := r.LastCode("c@example.com"); ok {
		t.Fatal("unexpected code for unknown recipient")
	}

	r.FailWith(errors.New("down"))
	if err := r.Send(ctx, "a@example.com", "s", "b"); err == nil {
		t.Fatal("expected failure")
	}
	if len(r.Messages()) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(r.Messages()))
	}
}

func TestLogClient(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	c := NewLogClient(zap.New(core))

	if err := c.Send(context.Background(), "a@example.com", "subject", "body"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	entries := logs.FilterLoggerName("email").All()
	if len(entries) != 1 || entries[0].ContextMap()["to"] != "a@example.com" {
		t.Fatalf("unexpected log entries %+v", entries)
	}
}
