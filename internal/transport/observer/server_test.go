package observer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"sortbot.ai/internal/observerproto"
	"sortbot.ai/internal/sim/encoding"
	"sortbot.ai/internal/sim/tuning"
	"sortbot.ai/internal/sim/world"
)

func newWorld(t *testing.T) *world.World {
	t.Helper()
	w, err := world.New(tuning.Defaults())
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	return w
}

func TestBootstrap(t *testing.T) {
	s := NewServer("run-1", newWorld(t), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/v1/bootstrap")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status=%d", resp.StatusCode)
	}
	var boot observerproto.BootstrapResponse
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if boot.RunID != "run-1" || boot.ProtocolVersion != observerproto.Version || len(boot.Bins) != 3 {
		t.Fatalf("bootstrap=%+v", boot)
	}
	if boot.Arena.Width != 10 || boot.Home.X != 1 || boot.Home.Y != 1 {
		t.Fatalf("bootstrap=%+v", boot)
	}
	cells, err := encoding.DecodeCells(boot.Layout, 11*11)
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if cells[1*11+1] != encoding.CellHome {
		t.Fatalf("home cell=%d", cells[1*11+1])
	}

	post, err := http.Post(srv.URL+"/v1/bootstrap", "application/json", strings.NewReader("{}"))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	post.Body.Close()
	if post.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("POST status=%d", post.StatusCode)
	}
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/v1/frames"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func waitSubscribers(t *testing.T, s *Server, n int) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for s.Subscribers() != n {
		if time.Now().After(deadline) {
			t.Fatalf("subscribers=%d want %d", s.Subscribers(), n)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestStream_DeliversEveryFrameOfARun(t *testing.T) {
	w := newWorld(t)
	s := NewServer("run-1", w, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	sub, _ := json.Marshal(observerproto.SubscribeMsg{Type: observerproto.TypeSubscribe, ProtocolVersion: observerproto.Version})
	if err := conn.WriteMessage(websocket.TextMessage, sub); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	waitSubscribers(t, s, 1)

	w.SetSink(s)
	res, err := w.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Frames > subscriberBuffer {
		t.Skipf("run emits %d frames, more than the subscriber buffer", res.Frames)
	}
	s.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var got []observerproto.FrameMsg
	for {
		_, b, err := conn.ReadMessage()
		if err != nil {
			break
		}
		var m observerproto.FrameMsg
		if err := json.Unmarshal(b, &m); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		got = append(got, m)
	}
	if uint64(len(got)) != res.Frames {
		t.Fatalf("received %d frames, run emitted %d (dropped=%d)", len(got), res.Frames, s.Dropped())
	}
	if last := got[len(got)-1]; last.Kind != string(world.FrameDone) || last.Digest != res.FinalDigest {
		t.Fatalf("last frame=%+v", last)
	}
}

func TestStream_RejectsBadHandshake(t *testing.T) {
	s := NewServer("run-1", newWorld(t), nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)
	defer conn.Close()
	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"HELLO","protocol_version":"0.1"}`))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	if !websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
		t.Fatalf("expected policy violation close, got %v", err)
	}
}

func TestWriteFrame_SlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	s := NewServer("run-1", newWorld(t), nil)
	_, ch := s.subscribe(2)

	for i := 0; i < 5; i++ {
		if err := s.WriteFrame(world.Frame{Seq: uint64(i), Kind: world.FrameMove}); err != nil {
			t.Fatalf("WriteFrame: %v", err)
		}
	}
	if len(ch) != 2 || s.Dropped() != 3 {
		t.Fatalf("queued=%d dropped=%d", len(ch), s.Dropped())
	}

	// A late joiner is primed with the latest frame.
	_, late := s.subscribe(2)
	var m observerproto.FrameMsg
	if err := json.Unmarshal(<-late, &m); err != nil || m.Seq != 4 {
		t.Fatalf("late joiner got seq=%d err=%v", m.Seq, err)
	}

	s.Close()
	if _, ok := <-late; ok {
		t.Fatalf("stream should be closed")
	}
	if s.Subscribers() != 0 {
		t.Fatalf("subscribers=%d after close", s.Subscribers())
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	cases := map[string]bool{
		"127.0.0.1:5555": true,
		"[::1]:80":       true,
		"10.0.0.2:80":    false,
		"garbage":        false,
	}
	for in, want := range cases {
		if got := isLoopbackRemote(in); got != want {
			t.Fatalf("isLoopbackRemote(%q)=%v want %v", in, got, want)
		}
	}
}
