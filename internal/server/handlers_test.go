package server

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/jeongseonghan/fft-ocean/internal/protocol"
)

func newTestServer(t *testing.T) (*Server, *Runner, *WSHub) {
	t.Helper()
	hub := NewWSHub()
	runner := NewRunner(newTestSimulation(t), 30, hub)
	srv := NewServer("127.0.0.1:0", NewHandlers(runner, hub, nil), "")
	return srv, runner, hub
}

func TestHandleParams_Get(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/params", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp ParamsResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Size != 16 || resp.WaveSpeed != 10 || resp.Draw != "uniform" {
		t.Errorf("unexpected params %+v", resp)
	}
}

func TestHandleParams_Post(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
	}{
		{"update height", `{"waveHeight": 2.5}`, http.StatusOK},
		{"update all", `{"waveHeight": 1, "waveSpeed": 20, "choppiness": 0.3}`, http.StatusOK},
		{"empty update", `{}`, http.StatusOK},
		{"negative speed", `{"waveSpeed": -3}`, http.StatusBadRequest},
		{"zero height", `{"waveHeight": 0}`, http.StatusOK},
		{"negative height", `{"waveHeight": -1}`, http.StatusBadRequest},
		{"bad json", `{"waveHeight":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, runner, _ := newTestServer(t)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/api/params", strings.NewReader(tt.body))
			srv.Handler().ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status %d, want %d (%s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.status != http.StatusOK {
				return
			}

			var resp ParamsResponse
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("decode: %v", err)
			}
			p := runner.Params()
			if resp.WaveHeight != p.Amplitude || resp.WaveSpeed != p.WindSpeed || resp.Choppiness != p.Choppiness {
				t.Errorf("response %+v does not match runner params %+v", resp, p)
			}
		})
	}
}

func TestHandleParams_MethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/params", nil))
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status %d, want 405", rec.Code)
	}
}

func TestHandleFrame(t *testing.T) {
	srv, runner, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/frame", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status before first tick %d, want 503", rec.Code)
	}

	f := runner.Step(0.25)

	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/frame", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	var resp FrameResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Seq != f.Seq || resp.Size != 16 || resp.Time != 0.25 || len(resp.Heights) != 256 {
		t.Fatalf("unexpected frame seq %d size %d time %v samples %d", resp.Seq, resp.Size, resp.Time, len(resp.Heights))
	}
	for i := range f.Heights {
		if resp.Heights[i] != f.Heights[i] {
			t.Fatalf("Heights[%d]: %v != %v", i, resp.Heights[i], f.Heights[i])
		}
	}
}

func TestHandleStatus(t *testing.T) {
	srv, runner, _ := newTestServer(t)
	runner.Step(0)
	runner.Step(0.1)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}

	var resp StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Ticks != 2 || resp.Clients != 0 || resp.UDP != nil {
		t.Errorf("unexpected status %+v", resp)
	}
	if resp.Stats.RMS <= 0 {
		t.Errorf("RMS = %v, want positive", resp.Stats.RMS)
	}
}

func waitClients(t *testing.T, hub *WSHub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Clients() != n {
		if time.Now().After(deadline) {
			t.Fatalf("clients = %d, want %d", hub.Clients(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestWebSocket_StreamsFramesAndAcceptsParams(t *testing.T) {
	srv, runner, hub := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	waitClients(t, hub, 1)

	want := runner.Step(1)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("message type %d, want binary", mt)
	}
	got, err := protocol.DecodeFrame(data)
	if err != nil {
		t.Fatalf("DecodeFrame: %v", err)
	}
	if got.Seq != want.Seq || len(got.Heights) != len(want.Heights) {
		t.Fatalf("got frame %d with %d samples", got.Seq, len(got.Heights))
	}

	msg := `{"type":"params","payload":{"choppiness":0.9}}`
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}

	// exactly one JSON params message, no binary PARAMS frame
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.TextMessage {
		t.Fatalf("message type %d, want text", mt)
	}
	var m struct {
		Type    string         `json:"type"`
		Payload ParamsResponse `json:"payload"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m.Type != "params" || m.Payload.Choppiness != 0.9 {
		t.Fatalf("got %s message %+v", m.Type, m.Payload)
	}

	next := runner.Step(2)
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err = conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("message type %d after params, want the next heights frame", mt)
	}
	if f, err := protocol.DecodeFrame(data); err != nil || f.Seq != next.Seq || f.Type != protocol.TypeHeights {
		t.Fatalf("after params got %+v, %v; want heights frame %d", f, err, next.Seq)
	}
	if runner.Params().Choppiness != 0.9 {
		t.Errorf("choppiness = %v, want 0.9", runner.Params().Choppiness)
	}

	hub.CloseAll()
	if hub.Clients() != 0 {
		t.Errorf("clients after CloseAll = %d", hub.Clients())
	}
}

func dialWS(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func TestWebSocket_ErrorsGoToSenderOnly(t *testing.T) {
	srv, runner, hub := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	sender := dialWS(t, ts)
	defer sender.Close()
	other := dialWS(t, ts)
	defer other.Close()
	waitClients(t, hub, 2)

	if err := sender.WriteMessage(websocket.TextMessage, []byte(`{"type":"params","payload":{"waveSpeed":-1}}`)); err != nil {
		t.Fatalf("write: %v", err)
	}

	sender.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := sender.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var m struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if mt != websocket.TextMessage || json.Unmarshal(data, &m) != nil || m.Type != "log" || m.Payload["level"] != "error" {
		t.Fatalf("sender got %q, want an error log", data)
	}

	// the other client's next message is the heights frame, not the error
	want := runner.Step(0.5)
	other.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err = other.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if mt != websocket.BinaryMessage {
		t.Fatalf("other client got text %q", data)
	}
	if f, err := protocol.DecodeFrame(data); err != nil || f.Seq != want.Seq {
		t.Fatalf("other client got %+v, %v", f, err)
	}
}

func TestWebSocket_SlowClientDropped(t *testing.T) {
	srv, _, hub := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// never reads
	conn := dialWS(t, ts)
	defer conn.Close()
	waitClients(t, hub, 1)

	const size = 512
	big := protocol.NewHeightFrame(0, size, 0, 1, 0, make([]float32, size*size))

	deadline := time.Now().Add(10 * time.Second)
	for seq := uint32(1); hub.Clients() != 0; seq++ {
		if time.Now().After(deadline) {
			t.Fatalf("stalled client still connected after %d frames", seq)
		}
		big.Seq = seq
		start := time.Now()
		hub.Publish(big)
		if d := time.Since(start); d > 500*time.Millisecond {
			t.Fatalf("Publish blocked for %v on a stalled client", d)
		}
	}
}

func TestWSHub_CloseAllTwice(t *testing.T) {
	srv, _, hub := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	conn := dialWS(t, ts)
	defer conn.Close()
	waitClients(t, hub, 1)

	hub.CloseAll()
	hub.CloseAll()
	hub.Publish(protocol.NewHeightFrame(1, 2, 0, 1, 0, make([]float32, 4)))
	if hub.Clients() != 0 {
		t.Errorf("clients = %d, want 0", hub.Clients())
	}
}

func TestUDPStreamer_DeliversFrames(t *testing.T) {
	pc, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer pc.Close()

	streamer, err := NewUDPStreamer(pc.LocalAddr().String(), 4, 2, 16)
	if err != nil {
		t.Fatalf("NewUDPStreamer: %v", err)
	}
	defer streamer.Close()

	runner := NewRunner(newTestSimulation(t), 30, streamer)
	want := runner.Step(0.75)

	rx := protocol.NewReceiver()
	buf := make([]byte, 64*1024)
	var got *protocol.HeightFrame
	for got == nil {
		pc.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := pc.ReadFromUDP(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		got, err = rx.Receive(buf[:n])
		if err != nil {
			t.Fatalf("Receive: %v", err)
		}
	}

	if got.Seq != want.Seq || got.Time != want.Time {
		t.Fatalf("got frame %d at %v, want %d at %v", got.Seq, got.Time, want.Seq, want.Time)
	}
	for i := range want.Heights {
		if got.Heights[i] != want.Heights[i] {
			t.Fatalf("Heights[%d]: %v != %v", i, got.Heights[i], want.Heights[i])
		}
	}

	st := streamer.Stats()
	if st.Frames != 1 || st.Shards != st.DataShards+st.ParityShards || st.DataShards != 4 || st.Errors != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestNewUDPStreamer_RejectsOversizedGrid(t *testing.T) {
	_, err := NewUDPStreamer("127.0.0.1:9", 10, 4, 2048)
	if !errors.Is(err, protocol.ErrFrameTooLarge) {
		t.Fatalf("expected ErrFrameTooLarge, got %v", err)
	}
}
