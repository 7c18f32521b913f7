package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTelegram_Send(t *testing.T) {
	var got telegramMessage
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
	}))
	defer srv.Close()

	tg, err := NewTelegram("TOKEN", "@drafts", "", srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	tg.BaseURL = srv.URL

	err = tg.Send(context.Background(), Draft{PostID: "p1", Platform: "twitter", Tone: "witty", Text: "a <b> c"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != "/botTOKEN/sendMessage" {
		t.Errorf("unexpected path %s", path)
	}
	if got.ChatID != "@drafts" || got.ParseMode != "HTML" {
		t.Errorf("unexpected message %+v", got)
	}
	if !strings.Contains(got.Text, "a &lt;b&gt; c") || !strings.Contains(got.Text, "<code>p1</code>") {
		t.Errorf("unexpected text %q", got.Text)
	}
}

func TestTelegram_Non200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	tg, _ := NewTelegram("T", "c", "{{.Text}}", srv.Client())
	tg.BaseURL = srv.URL
	if err := tg.Send(context.Background(), Draft{Text: "x"}); err == nil {
		t.Error("expected an error for a 429 response")
	}
}

func TestTelegram_BadTemplate(t *testing.T) {
	if _, err := NewTelegram("T", "c", "{{.Missing", nil); err == nil {
		t.Error("expected a parse error")
	}
}

func TestTelegram_RenderTruncates(t *testing.T) {
	tg, _ := NewTelegram("T", "c", "{{.Text}}", nil)
	text, err := tg.Render(Draft{Text: strings.Repeat("x", maxMessageLength+10)})
	if err != nil || len(text) != maxMessageLength {
		t.Errorf("expected %d characters, got %d (%v)", maxMessageLength, len(text), err)
	}
}

type countingNotifier struct {
	mu    sync.Mutex
	times []time.Time
}

func (c *countingNotifier) Send(context.Context, Draft) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.times = append(c.times, time.Now())
	return nil
}

func TestDispatcher_Paces(t *testing.T) {
	n := &countingNotifier{}
	d := NewDispatcher(n, 50*time.Millisecond, nil)

	for i := 0; i < 3; i++ {
		if err := d.Deliver(context.Background(), Draft{}); err != nil {
			t.Fatal(err)
		}
	}
	if len(n.times) != 3 {
		t.Fatalf("expected 3 sends, got %d", len(n.times))
	}
	if gap := n.times[2].Sub(n.times[0]); gap < 90*time.Millisecond {
		t.Errorf("expected sends to be paced, total gap %v", gap)
	}
}

func TestDispatcher_DeliverHonoursContext(t *testing.T) {
	d := NewDispatcher(&countingNotifier{}, time.Hour, nil)
	_ = d.Deliver(context.Background(), Draft{})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := d.Deliver(ctx, Draft{}); err == nil {
		t.Error("expected the limiter wait to fail")
	}
}

func TestDispatcher_CloseDrainsQueuedDrafts(t *testing.T) {
	n := &countingNotifier{}
	d := NewDispatcher(n, 20*time.Millisecond, nil)

	for i := 0; i < 3; i++ {
		d.Notify(Draft{PostID: "p"})
	}
	if err := d.Close(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(n.times) != 3 {
		t.Fatalf("expected all 3 drafts sent before Close returned, got %d", len(n.times))
	}

	d.Notify(Draft{PostID: "late"})
	if len(n.times) != 3 {
		t.Error("drafts after Close must be dropped")
	}
}

func TestDispatcher_CloseCancelsOnDeadline(t *testing.T) {
	n := &countingNotifier{}
	d := NewDispatcher(n, time.Hour, nil)

	for i := 0; i < 3; i++ {
		d.Notify(Draft{PostID: "p"})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := d.Close(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Close blocked for %v", elapsed)
	}
	if len(n.times) != 1 {
		t.Errorf("expected only the first draft to be sent, got %d", len(n.times))
	}
}
