package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"readmegen/internal/pipeline"
)

const (
	readmeWSWriteWait = 10 * time.Second
	readmeWSPongWait  = 60 * time.Second
	readmeWSPingEvery = (readmeWSPongWait * 9) / 10
)

var readmeWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type readmeWSOutbound struct {
	Type    string          `json:"type"`
	Stage   pipeline.Stage  `json:"stage,omitempty"`
	Percent int             `json:"percent,omitempty"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Result  *readmeResponse `json:"result,omitempty"`
}

// HandleReadmeWS reads one request (the JSON body of POST /v1/readme), then
// streams "progress" messages followed by a single "result" or "error".
func (h *Handler) HandleReadmeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := readmeWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadLimit(h.deps.MaxUploadBytes)
	if err := conn.SetReadDeadline(time.Now().Add(readmeWSPongWait)); err != nil {
		h.deps.Logger.Printf("readme ws set read deadline failed: %v", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readmeWSPongWait))
	})

	var req readmeRequest
	if err := conn.ReadJSON(&req); err != nil {
		_ = conn.SetWriteDeadline(time.Now().Add(readmeWSWriteWait))
		_ = conn.WriteJSON(readmeWSOutbound{Type: "error", Code: "bad_request", Message: "decode request: " + err.Error()})
		return
	}

	writeCh := make(chan readmeWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(readmeWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case out, ok := <-writeCh:
				if !ok {
					_ = conn.SetWriteDeadline(time.Now().Add(readmeWSWriteWait))
					_ = conn.WriteMessage(websocket.CloseMessage,
						websocket.FormatCloseMessage(websocket.CloseNormalClosure, "done"))
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(readmeWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					cancel()
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(readmeWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	// A read error means the client went away; abandon the run.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	obs := func(ev pipeline.Event) {
		pushReadmeWS(writeCh, readmeWSOutbound{
			Type:    "progress",
			Stage:   ev.Stage,
			Percent: ev.Percent,
			Message: ev.Message,
		})
	}
	out, err := h.generate(ctx, req, obs)
	if err != nil {
		_, code := classify(err)
		if code == "pipeline_failed" || code == "internal" {
			h.deps.Logger.Printf("readme ws run failed: %v", err)
		}
		pushReadmeWS(writeCh, readmeWSOutbound{Type: "error", Code: code, Message: err.Error()})
	} else {
		pushReadmeWS(writeCh, readmeWSOutbound{Type: "result", Result: out})
	}
	close(writeCh)
	<-writerDone
}

// pushReadmeWS never blocks the pipeline; when the buffer is full the oldest
// message is dropped.
func pushReadmeWS(writeCh chan readmeWSOutbound, out readmeWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
