package app

import (
	"context"
	"fmt"

	"github.com/hraza/awaaz/internal/engine"
	"github.com/hraza/awaaz/internal/ipc"
)

// engineHandler exposes engine actions over the IPC control plane.
type engineHandler struct {
	engine *engine.Engine
}

func newEngineHandler(e *engine.Engine) engineHandler {
	return engineHandler{engine: e}
}

// Handle serves one control command against the hosted engine.
func (h engineHandler) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "start":
		if err := h.engine.Start(ctx); err != nil {
			resp := h.snapshotResponse(false, "")
			resp.Error = err.Error()
			return resp
		}
		snap := h.engine.Snapshot()
		if snap.Err != nil {
			return h.snapshotResponse(false, "")
		}
		return h.snapshotResponse(true, "recording started")
	case "stop":
		h.engine.Stop()
		return h.snapshotResponse(true, "stopped")
	case "reset":
		h.engine.Reset()
		return h.snapshotResponse(true, "reset")
	case "dismiss":
		h.engine.Dismiss()
		return h.snapshotResponse(true, "error dismissed")
	case "status", "transcript":
		return h.snapshotResponse(true, "")
	default:
		resp := h.snapshotResponse(false, "")
		resp.Error = fmt.Sprintf("unknown command: %s", req.Command)
		return resp
	}
}

// snapshotResponse folds the engine state surface into a wire response.
func (h engineHandler) snapshotResponse(ok bool, message string) ipc.Response {
	snap := h.engine.Snapshot()
	resp := ipc.Response{
		OK:         ok,
		State:      string(snap.State),
		Message:    message,
		Transcript: snap.LiveTranscript,
		Language:   string(snap.DetectedLanguage),
	}
	if snap.Err != nil {
		resp.ErrorCode = string(snap.Err.Code)
		resp.Error = snap.Err.Message
	}
	return resp
}
