package server

import (
	"net/http"
	"time"
)

const (
	// defaultWatchInterval applies when the config leaves the
	// dashboard refresh unset.
	defaultWatchInterval = 30 * time.Second
	// heartbeatInterval is how often a keepalive is sent to the
	// client.
	heartbeatInterval = 15 * time.Second
)

func (s *Server) watchInterval() time.Duration {
	if s.cfg.WatchInterval > 0 {
		return s.cfg.WatchInterval
	}
	return defaultWatchInterval
}

// handleWatchDashboard streams the dashboard report, recomputed
// every watch interval, until the client disconnects.
func (s *Server) handleWatchDashboard(
	w http.ResponseWriter, r *http.Request,
) {
	req, ok := s.parseReportRequest(w, r)
	if !ok {
		return
	}

	stream, err := NewSSEStream(w, s.log)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError,
			"streaming not supported")
		return
	}

	ctx := r.Context()
	push := func() bool {
		rep, err := s.engine.Dashboard(ctx, req)
		if err != nil {
			return stream.SendJSON("error",
				jsonError{Error: err.Error()})
		}
		if ctx.Err() != nil {
			return false
		}
		return stream.SendJSON("dashboard", rep)
	}
	if !push() {
		return
	}

	refresh := time.NewTicker(s.watchInterval())
	defer refresh.Stop()
	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-refresh.C:
			if !push() {
				return
			}
		case <-heartbeat.C:
			if !stream.Send("heartbeat",
				time.Now().UTC().Format(time.RFC3339)) {
				return
			}
		}
	}
}
