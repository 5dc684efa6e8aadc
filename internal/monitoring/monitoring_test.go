package monitoring

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"device-tracker/internal/models"

	"github.com/gorilla/websocket"
)

func TestStageFeedDeliversEvents(t *testing.T) {
	feed := NewStageFeed()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go feed.Run(ctx)

	srv := httptest.NewServer(feed)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for feed.Clients() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if feed.Clients() != 1 {
		t.Fatalf("got %d clients", feed.Clients())
	}

	feed.Publish(models.StageEvent{IMEI: "356938035643809", Stage: models.StageCarton, Previous: models.StageGiftbox})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got models.StageEvent
	if err := conn.ReadJSON(&got); err != nil {
		t.Fatal(err)
	}
	if got.IMEI != "356938035643809" || got.Stage != models.StageCarton {
		t.Errorf("got %+v", got)
	}
}

func TestStageFeedPublishNeverBlocks(t *testing.T) {
	feed := NewStageFeed()
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			feed.Publish(models.StageEvent{IMEI: "x", Stage: models.StageFlash})
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked without a running feed")
	}
}

func TestCollectWithoutDatabase(t *testing.T) {
	stats := NewStatsCollector(nil, NewStageFeed()).Collect(context.Background())
	if stats.DatabaseStatus != "unconfigured" {
		t.Errorf("database status %q", stats.DatabaseStatus)
	}
}

func TestFormatUptime(t *testing.T) {
	cases := map[int]string{59: "0m", 3660: "1h 1m", 90000: "1d 1h 0m"}
	for in, want := range cases {
		if got := formatUptime(in); got != want {
			t.Errorf("formatUptime(%d) = %q, want %q", in, got, want)
		}
	}
}
