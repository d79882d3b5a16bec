package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/fieldmap/internal/people"
)

type personRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

func (s *Server) handleListPeople(w http.ResponseWriter, r *http.Request) {
	if s.people == nil {
		jsonError(w, "people store unavailable", http.StatusServiceUnavailable)
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			jsonError(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = min(n, 1000)
	}

	list, err := s.people.List(r.Context(), limit)
	if err != nil {
		s.log.Error("list people failed", "error", err)
		jsonError(w, "failed to list people", http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []people.Person{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"people": list})
}

// handleCreatePerson accepts a JSON body or a regular form post.
func (s *Server) handleCreatePerson(w http.ResponseWriter, r *http.Request) {
	if s.people == nil {
		jsonError(w, "people store unavailable", http.StatusServiceUnavailable)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 64*1024)
	var req personRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := decodeJSON(r, &req); err != nil {
			jsonError(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
			return
		}
	} else {
		if err := r.ParseForm(); err != nil {
			jsonError(w, "invalid form: "+err.Error(), http.StatusBadRequest)
			return
		}
		req = personRequest{
			FirstName: r.PostForm.Get("first_name"),
			LastName:  r.PostForm.Get("last_name"),
			Email:     r.PostForm.Get("email"),
		}
	}

	p, err := people.New(req.FirstName, req.LastName, req.Email, time.Now())
	if err != nil {
		jsonError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := s.people.Create(r.Context(), p); err != nil {
		s.log.Error("create person failed", "error", err)
		jsonError(w, "failed to create person", http.StatusInternalServerError)
		return
	}

	s.log.Info("person created", "person_id", p.ID)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) handleGetPerson(w http.ResponseWriter, r *http.Request) {
	if s.people == nil {
		jsonError(w, "people store unavailable", http.StatusServiceUnavailable)
		return
	}

	p, err := s.people.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		code := errorStatus(err)
		if code == http.StatusInternalServerError {
			s.log.Error("get person failed", "error", err)
			jsonError(w, "failed to get person", code)
			return
		}
		jsonError(w, err.Error(), code)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
