package httpapi

import (
	"net/http"

	"github.com/mpetrucci/pitchcoach/internal/persona"
)

func (s *Server) handleListPersonas(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, map[string]any{
		"personas": persona.List(),
	})
}
