package api

import (
	"net/http"
	"time"

	"orderbridge/internal/buildinfo"
)

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	info := map[string]any{
		"build":  buildinfo.Info(),
		"time":   time.Now().UTC().Format(time.RFC3339),
		"config": s.Config.Redacted(),
	}
	if p, ok := principal(r); ok {
		info["principal"] = map[string]string{"subject": p.Subject, "role": p.Role}
	}
	writeJSON(w, http.StatusOK, info)
}
