package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jeongseonghan/fft-ocean/internal/audio"
	"github.com/jeongseonghan/fft-ocean/internal/logger"
	"github.com/jeongseonghan/fft-ocean/internal/ocean"
)

// Handlers holds the HTTP API handlers.
type Handlers struct {
	runner   *Runner
	wsHub    *WSHub
	streamer *UDPStreamer // nil when streaming is disabled
	log      *zap.Logger
}

// NewHandlers creates API handlers around a runner and hub. streamer may
// be nil.
func NewHandlers(runner *Runner, hub *WSHub, streamer *UDPStreamer) *Handlers {
	return &Handlers{
		runner:   runner,
		wsHub:    hub,
		streamer: streamer,
		log:      logger.Named("http"),
	}
}

// ParamsResponse describes the current simulation parameters.
type ParamsResponse struct {
	Size          int        `json:"size"`
	Extent        float32    `json:"extent"`
	WaveHeight    float32    `json:"waveHeight"`
	WaveSpeed     float32    `json:"waveSpeed"`
	WindDirection [2]float32 `json:"windDirection"`
	Choppiness    float32    `json:"choppiness"`
	Draw          string     `json:"draw"`
}

func newParamsResponse(p ocean.Params) ParamsResponse {
	return ParamsResponse{
		Size:          p.Size,
		Extent:        p.Extent,
		WaveHeight:    p.Amplitude,
		WaveSpeed:     p.WindSpeed,
		WindDirection: [2]float32{p.WindDirection.X(), p.WindDirection.Y()},
		Choppiness:    p.Choppiness,
		Draw:          p.Draw.String(),
	}
}

// StatusResponse is returned by /api/status.
type StatusResponse struct {
	Status
	Clients int       `json:"clients"`
	UDP     *UDPStats `json:"udp,omitempty"`
}

// FrameResponse is the JSON rendering of the latest height field.
type FrameResponse struct {
	Seq        uint32    `json:"seq"`
	Size       int       `json:"size"`
	Time       float64   `json:"time"`
	Choppiness float32   `json:"choppiness"`
	Heights    []float32 `json:"heights"`
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// HandleWebSocket handles WebSocket upgrade requests. Clients may send
// {"type":"params","payload":{...}} to change parameters; errors are
// reported back to that client only.
func (h *Handlers) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	h.wsHub.AddClient(conn)

	go func() {
		defer h.wsHub.RemoveClient(conn)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				break
			}
			h.handleClientMessage(conn, data)
		}
	}()
}

func (h *Handlers) handleClientMessage(conn *websocket.Conn, data []byte) {
	reply := func(level, format string, args ...interface{}) {
		h.wsHub.SendTo(conn, logMessage(level, fmt.Sprintf(format, args...)))
	}

	var msg inboundMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		reply("error", "Bad message: %v", err)
		return
	}

	switch msg.Type {
	case "params":
		var u ParamUpdate
		if err := json.Unmarshal(msg.Payload, &u); err != nil {
			reply("error", "Bad params: %v", err)
			return
		}
		// the hub announces the new values to every client
		if _, err := h.runner.Apply(u); err != nil {
			reply("error", "%v", err)
		}
	default:
		reply("warn", "Unknown message type %q", msg.Type)
	}
}

// HandleParams returns (GET) or updates (POST) the wave parameters.
func (h *Handlers) HandleParams(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, newParamsResponse(h.runner.Params()))

	case http.MethodPost:
		var u ParamUpdate
		if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
			http.Error(w, fmt.Sprintf("Parse request: %v", err), http.StatusBadRequest)
			return
		}
		p, err := h.runner.Apply(u)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, ocean.ErrInvalidParams) {
				status = http.StatusBadRequest
			}
			http.Error(w, err.Error(), status)
			return
		}
		writeJSON(w, newParamsResponse(p))

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleStatus returns tick counters, field statistics and client counts.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Status:  h.runner.Status(),
		Clients: h.wsHub.Clients(),
	}
	if h.streamer != nil {
		st := h.streamer.Stats()
		resp.UDP = &st
	}
	writeJSON(w, resp)
}

// HandleFrame returns the latest height field as JSON.
func (h *Handlers) HandleFrame(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	f := h.runner.Latest()
	if f == nil {
		http.Error(w, "No frame yet", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, FrameResponse{
		Seq:        f.Seq,
		Size:       int(f.Size),
		Time:       f.Time,
		Choppiness: f.Choppiness,
		Heights:    f.Heights,
	})
}

// HandleDevices lists available audio output devices.
func (h *Handlers) HandleDevices(w http.ResponseWriter, r *http.Request) {
	devices, err := audio.ListDevices()
	if err != nil {
		writeJSON(w, map[string]interface{}{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	writeJSON(w, map[string]interface{}{
		"status":    "ok",
		"devices":   devices,
		"hasOutput": len(devices) > 0,
	})
}
