package main

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/zlc_ai/appevents-bridge/internal/protocol"
)

// nativeHost is the part of the runtime the native hooks drive.
type nativeHost interface {
	Resume(multitasking bool)
	Pause(multitasking bool)
	ActivityResult(requestCode, resultCode int, intent *protocol.Intent) bool
}

type viewSurface interface {
	SetReady(ready bool)
	Ready() bool
}

func lifecycleHandler(rt nativeHost, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var ev protocol.LifecycleEvent
		if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
			writeBridgeError(w, http.StatusBadRequest, protocol.ErrCodeProtocolError, "invalid lifecycle event")
			return
		}

		switch ev.Event {
		case protocol.LifecycleResume:
			rt.Resume(ev.Multitasking)
		case protocol.LifecyclePause:
			rt.Pause(ev.Multitasking)
		default:
			writeBridgeError(w, http.StatusBadRequest, protocol.ErrCodeProtocolError, "unknown lifecycle event: "+string(ev.Event))
			return
		}

		logger.Info("Lifecycle event",
			zap.String("event", string(ev.Event)),
			zap.Bool("multitasking", ev.Multitasking))
		writeOK(w, nil)
	})
}

func activityResultHandler(rt nativeHost, logger *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var res protocol.ActivityResult
		if err := json.NewDecoder(r.Body).Decode(&res); err != nil {
			writeBridgeError(w, http.StatusBadRequest, protocol.ErrCodeProtocolError, "invalid activity result")
			return
		}

		if !rt.ActivityResult(res.RequestCode, res.ResultCode, res.Intent) {
			writeBridgeError(w, http.StatusNotFound, protocol.ErrCodeNotFound, "no activity result receiver")
			return
		}

		logger.Debug("Activity result relayed", zap.Int("requestCode", res.RequestCode))
		writeOK(w, nil)
	})
}

// webViewHandler reports and toggles whether the web view is attached.
func webViewHandler(surface viewSurface) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
		case http.MethodPost:
			var body struct {
				Ready bool `json:"ready"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				writeBridgeError(w, http.StatusBadRequest, protocol.ErrCodeProtocolError, "invalid web view state")
				return
			}
			surface.SetReady(body.Ready)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		writeOK(w, map[string]interface{}{"ready": surface.Ready()})
	})
}

func writeOK(w http.ResponseWriter, extra map[string]interface{}) {
	body := map[string]interface{}{"ok": true}
	for k, v := range extra {
		body[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(body)
}

func writeBridgeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(protocol.NewBridgeError(code, message))
}
