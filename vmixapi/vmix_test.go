package vmixapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/livecue/chatfeed/testutil"
)

func TestPing(t *testing.T) {
	mock := testutil.NewMockVMixServer(t)
	c := &Client{BaseURL: mock.URL}
	ok, err := c.Ping(context.Background())
	if err != nil {
		t.Fatalf("Ping: %v", err)
	}
	if !ok {
		t.Error("Ping = false against healthy server")
	}
}

func TestPingUnreachable(t *testing.T) {
	c := &Client{BaseURL: "http://127.0.0.1:1"}
	if _, err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected error against closed port")
	}
}

func TestSetFields(t *testing.T) {
	mock := testutil.NewMockVMixServer(t)
	c := &Client{BaseURL: mock.URL}
	fields := map[string]string{
		"Author1.Text":  "viewer_42",
		"Message1.Text": "great stream",
	}
	if err := c.SetFields(context.Background(), "CommentOverlay", fields); err != nil {
		t.Fatalf("SetFields: %v", err)
	}

	got := map[string]string{}
	for _, call := range mock.SetTexts() {
		if call.Input != "CommentOverlay" {
			t.Errorf("Input = %q, want CommentOverlay", call.Input)
		}
		got[call.Name] = call.Value
	}
	for name, want := range fields {
		if got[name] != want {
			t.Errorf("field %q = %q, want %q", name, got[name], want)
		}
	}
}

func TestSetFieldsAbortsOnFailure(t *testing.T) {
	mock := testutil.NewMockVMixServer(t)
	mock.FailAfter = 1
	c := &Client{BaseURL: mock.URL}
	err := c.SetFields(context.Background(), "CommentOverlay", map[string]string{
		"Author1.Text":  "a",
		"Message1.Text": "b",
		"Author2.Text":  "c",
	})
	if err == nil {
		t.Fatal("expected error once server starts failing")
	}
	if calls := len(mock.SetTexts()); calls >= 3 {
		t.Errorf("client kept calling after failure: %d calls", calls)
	}
}

func TestTriggerTransition(t *testing.T) {
	mock := testutil.NewMockVMixServer(t)
	c := &Client{BaseURL: mock.URL}
	if err := c.TriggerTransition(context.Background(), "CommentOverlay", "Fade"); err != nil {
		t.Fatalf("TriggerTransition: %v", err)
	}
	trans := mock.Transitions()
	if len(trans) != 1 || trans[0].Function != "Fade" || trans[0].Input != "CommentOverlay" {
		t.Errorf("transitions = %+v", trans)
	}
}

func TestPingTimesOutOnHungEndpoint(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release // hold the request open until the test ends
	}))
	defer func() {
		close(release)
		srv.Close()
	}()

	c := &Client{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}
	start := time.Now()
	_, err := c.Ping(context.Background())
	if err == nil {
		t.Fatal("expected timeout error from hung endpoint")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("ping blocked for %v, want bounded by the client timeout", elapsed)
	}
}

func TestTriggerTransitionStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such input", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL}
	if err := c.TriggerTransition(context.Background(), "Missing", "Fade"); err == nil {
		t.Fatal("expected error on 500")
	}
}
