package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dgallion1/fieldmap/internal/loader"
	"github.com/dgallion1/fieldmap/internal/mapping"
	"github.com/dgallion1/fieldmap/internal/session"
	"github.com/dgallion1/fieldmap/internal/tree"
)

// Upload form fields.
const (
	fieldSourceData   = "source_data"
	fieldSourceSchema = "source_schema"
	fieldTargetSchema = "target_schema"
)

// uploadError carries the response for a rejected upload.
type uploadError struct {
	msg  string
	code int
}

// readUpload decodes one uploaded document and returns it with its
// sanitized filename.
func (s *Server) readUpload(r *http.Request, field string) (any, string, *uploadError) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", &uploadError{fmt.Sprintf("%s is required", field), http.StatusBadRequest}
	}
	defer file.Close()

	filename := sanitizeFilename(header.Filename)
	if !loader.IsSupportedExtension(filename) {
		return nil, filename, &uploadError{
			fmt.Sprintf("%s: unsupported file type: %s", field, filename),
			http.StatusUnsupportedMediaType,
		}
	}

	data, err := io.ReadAll(io.LimitReader(file, s.cfg.MaxUploadBytes+1))
	if err != nil {
		return nil, filename, &uploadError{"failed to read file", http.StatusInternalServerError}
	}
	if int64(len(data)) > s.cfg.MaxUploadBytes {
		return nil, filename, &uploadError{
			fmt.Sprintf("%s exceeds max size (%d bytes)", field, s.cfg.MaxUploadBytes),
			http.StatusRequestEntityTooLarge,
		}
	}

	doc, err := loader.LoadBytes(data, filename)
	if err != nil {
		code := http.StatusBadRequest
		if errors.Is(err, tree.ErrDepthExceeded) {
			code = http.StatusUnprocessableEntity
		}
		return nil, filename, &uploadError{fmt.Sprintf("%s: %s", field, err), code}
	}
	return doc, filename, nil
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	// Three documents plus form overhead.
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes*3+1024*1024)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		jsonError(w, "invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return
	}
	defer r.MultipartForm.RemoveAll()

	var docs session.Documents
	uploads := []struct {
		field string
		doc   *any
		name  *string
	}{
		{fieldSourceData, &docs.SourceData, &docs.SourceDataName},
		{fieldSourceSchema, &docs.SourceSchema, &docs.SourceSchemaName},
		{fieldTargetSchema, &docs.TargetSchema, &docs.TargetSchemaName},
	}
	for _, u := range uploads {
		doc, name, ue := s.readUpload(r, u.field)
		if ue != nil {
			jsonError(w, ue.msg, ue.code)
			return
		}
		*u.doc, *u.name = doc, name
	}

	sess := s.sessions.Create(docs)
	s.log.Info("session created",
		"session_id", sess.ID,
		"source_data", docs.SourceDataName,
		"source_schema", docs.SourceSchemaName,
		"target_schema", docs.TargetSchemaName,
	)

	writeJSON(w, http.StatusCreated, map[string]any{
		"session":     sess.Snapshot(),
		"mapping_url": fmt.Sprintf("/api/sessions/%s/mapping", sess.ID),
	})
}

// session looks up the {id} session, writing the error response on failure.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return nil, false
	}
	return sess, true
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.sessions.Delete(id); err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}
	s.log.Info("session deleted", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMappingForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	form, err := s.engine.Form(sess, r.URL.Query().Get("suggest") == "true")
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}
	writeJSON(w, http.StatusOK, form)
}

func (s *Server) handleMappingSubmit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		err = r.ParseMultipartForm(8 << 20)
	} else {
		err = r.ParseForm()
	}
	if err != nil {
		jsonError(w, "invalid form: "+err.Error(), http.StatusBadRequest)
		return
	}

	out, stats, err := s.engine.Submit(sess, r.PostForm)
	if err != nil {
		jsonError(w, err.Error(), errorStatus(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"session_id": sess.ID,
		"output":     out,
		"stats":      stats,
		"result_url": fmt.Sprintf("/api/sessions/%s/result", sess.ID),
	})
}

func (s *Server) handleMappingExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}

	file := mapping.NewFile(sess.Mapping(), s.engine.KeyMode())
	switch format := r.URL.Query().Get("format"); format {
	case "", "yaml":
		data, err := file.Marshal()
		if err != nil {
			jsonError(w, "encode mapping: "+err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/yaml")
		w.Header().Set("Content-Disposition", `attachment; filename="mapping.yaml"`)
		w.Write(data)
	case "json":
		w.Header().Set("Content-Disposition", `attachment; filename="mapping.json"`)
		writeJSON(w, http.StatusOK, file)
	default:
		jsonError(w, fmt.Sprintf("unknown format %q (want yaml or json)", format), http.StatusBadRequest)
	}
}

func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.session(w, r)
	if !ok {
		return
	}
	out, ok := sess.Output()
	if !ok {
		jsonError(w, "no output yet; submit a mapping first", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if r.URL.Query().Get("download") == "true" {
		w.Header().Set("Content-Disposition", `attachment; filename="output.json"`)
	}
	w.Write(out)
}

// decodeJSON reads a JSON request body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
