package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/zapdesk/zapmetrics/internal/analytics"
	"github.com/zapdesk/zapmetrics/internal/timeutil"
)

// Caller identity is established by the auth layer in front of
// this service and forwarded in these headers.
const (
	headerOrgID  = "X-Organization-ID"
	headerUserID = "X-User-ID"
)

// parseReportRequest extracts the caller identity and window
// params shared by the dashboard and report routes. It writes a
// 400 and returns false on bad input. Window params never fail:
// unusable values fall back to the route's default window.
func (s *Server) parseReportRequest(
	w http.ResponseWriter, r *http.Request,
) (analytics.Request, bool) {
	orgID := strings.TrimSpace(r.Header.Get(headerOrgID))
	if orgID == "" {
		s.writeError(w, http.StatusBadRequest,
			"missing "+headerOrgID+" header")
		return analytics.Request{}, false
	}
	callerID := strings.TrimSpace(r.Header.Get(headerUserID))
	if callerID == "" {
		s.writeError(w, http.StatusBadRequest,
			"missing "+headerUserID+" header")
		return analytics.Request{}, false
	}

	q := r.URL.Query()
	tz := q.Get("timezone")
	if tz == "" {
		tz = "UTC"
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		s.writeError(w, http.StatusBadRequest,
			"invalid timezone: "+tz)
		return analytics.Request{}, false
	}

	return analytics.Request{
		OrgID:    orgID,
		CallerID: callerID,
		AgentID:  strings.TrimSpace(q.Get("agent_id")),
		Window: timeutil.WindowInput{
			DateStart:   q.Get("dateStart"),
			DateEnd:     q.Get("dateEnd"),
			Period:      q.Get("selectedPeriod"),
			Granularity: q.Get("granularity"),
		},
		Location: loc,
	}, true
}
