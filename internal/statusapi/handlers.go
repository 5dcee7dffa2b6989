package statusapi

import "net/http"

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	state, err := s.store.Read()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "state_read_failed", err.Error())
		return
	}
	if state == nil {
		writeError(w, http.StatusNotFound, "no_cluster_state", "no run has been started in this output directory")
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
