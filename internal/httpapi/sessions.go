package httpapi

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/p-n-ai/pai-worksheet/internal/generation"
	"github.com/p-n-ai/pai-worksheet/internal/options"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
	"github.com/p-n-ai/pai-worksheet/internal/session"
)

type gradeRequest struct {
	Grade string `json:"grade"`
}

type unitRequest struct {
	Unit     string `json:"unit"`
	Semester string `json:"semester"`
	Selected bool   `json:"selected"`
}

type subTopicsRequest struct {
	Unit      string   `json:"unit"`
	Semester  string   `json:"semester"`
	SubTopics []string `json:"subTopics"`
}

type difficultyRequest struct {
	Difficulty string `json:"difficulty"`
	Count      int    `json:"count"`
}

type selectRequest struct {
	ProblemID string `json:"problemId"`
}

type replaceRequest struct {
	NewDifficulty string `json:"newDifficulty"`
}

type replaceResponse struct {
	Problem problem.Problem  `json:"problem"`
	Session session.Snapshot `json:"session"`
}

// lookup resolves the session named in the URL, writing a 404 when it is unknown.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, err := s.sessions.Get(chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err, msgSessionNotFound)
		return nil, false
	}
	return sess, true
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := s.sessions.Create()
	w.Header().Set("Location", "/api/sessions/"+sess.ID())
	writeJSON(w, http.StatusCreated, sess.Snapshot())
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Snapshot())
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "sessionID")) {
		writeError(w, session.ErrNotFound, msgSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSetGrade(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req gradeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, msgInvalidBody)
		return
	}
	if _, known := s.catalog.Grade(req.Grade); !known {
		writeError(w, &options.ValidationError{Message: "알 수 없는 학년입니다: " + req.Grade}, msgInvalidBody)
		return
	}
	writeJSON(w, http.StatusOK, sess.SetGrade(req.Grade))
}

func (s *Server) handleToggleUnit(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req unitRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, msgInvalidBody)
		return
	}
	snap, err := sess.ToggleUnit(req.Unit, req.Semester, req.Selected)
	if err != nil {
		writeError(w, err, msgInvalidBody)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSetSubTopics(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req subTopicsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, msgInvalidBody)
		return
	}
	writeJSON(w, http.StatusOK, sess.SetSubTopics(req.Unit, req.Semester, req.SubTopics))
}

func (s *Server) handleSetDifficulty(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req difficultyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, msgInvalidBody)
		return
	}
	snap, err := sess.SetDifficultyCount(problem.Difficulty(req.Difficulty), options.Clamp(req.Count))
	if err != nil {
		writeError(w, err, msgInvalidBody)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snap, err := sess.Generate(r.Context())
	if err != nil {
		writeError(w, err, generation.MsgGenerateFailed)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, msgInvalidBody)
		return
	}
	writeJSON(w, http.StatusOK, sess.Select(req.ProblemID))
}

func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req replaceRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, msgInvalidBody)
		return
	}
	np, snap, err := sess.Replace(r.Context(), chi.URLParam(r, "problemID"), problem.Difficulty(req.NewDifficulty))
	if err != nil {
		writeError(w, err, generation.MsgReplaceFailed)
		return
	}
	writeJSON(w, http.StatusOK, replaceResponse{Problem: np, Session: snap})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, r)
	if !ok {
		return
	}
	snap, err := sess.Remove(r.Context(), chi.URLParam(r, "problemID"))
	if err != nil {
		writeError(w, err, msgProblemNotFound)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleExport(format session.Format) http.HandlerFunc {
	contentType := map[session.Format]string{
		session.FormatDOCX: "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		session.FormatXLSX: "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	}[format]

	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := s.lookup(w, r)
		if !ok {
			return
		}
		data, name, err := sess.Export(r.Context(), format)
		if err != nil {
			writeError(w, err, "문서 생성 중 오류가 발생했습니다.")
			return
		}
		w.Header().Set("Content-Type", contentType)
		w.Header().Set("Content-Disposition", attachment(name))
		w.Header().Set("Content-Length", strconv.Itoa(len(data)))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
