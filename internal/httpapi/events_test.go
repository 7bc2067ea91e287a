package httpapi

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hatsuki-dev/vispanel/internal/domain/model"
)

func TestHandleEventsSendsConnectedFrameThenReplay(t *testing.T) {
	srv, _, store, _, _ := newTestServer(t)

	if _, err := store.Append(model.Turn{Seq: 1, StoryIn: "hi", TsStart: "t0", TsEnd: "t1"}, "", false); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events?replay=5", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want text/event-stream", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	var lines []string
	for i := 0; i < 4 && scanner.Scan(); i++ {
		lines = append(lines, scanner.Text())
	}
	joined := strings.Join(lines, "\n")

	if !strings.Contains(joined, `"type":"connected"`) {
		t.Errorf("output = %q, want a connected frame first", joined)
	}
	if !strings.Contains(joined, `"seq":1`) {
		t.Errorf("output = %q, want replayed turn seq=1", joined)
	}
}

func TestHandleEventsStreamsLiveBroadcasts(t *testing.T) {
	srv, _, _, _, _ := newTestServer(t)

	ts := httptest.NewServer(srv.httpServer.Handler)
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := ts.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	if !scanner.Scan() {
		t.Fatal("expected a connected frame")
	}

	srv.broker.Broadcast(model.Turn{Seq: 7, StoryIn: "hi", TsStart: "t0", TsEnd: "t1"})

	found := false
	for i := 0; i < 6 && scanner.Scan(); i++ {
		if strings.Contains(scanner.Text(), `"seq":7`) {
			found = true
			break
		}
	}
	if !found {
		t.Error("did not observe broadcast turn seq=7 on the stream")
	}
}
