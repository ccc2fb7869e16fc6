package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/p-n-ai/pai-worksheet/internal/export"
	"github.com/p-n-ai/pai-worksheet/internal/generation"
	"github.com/p-n-ai/pai-worksheet/internal/options"
	"github.com/p-n-ai/pai-worksheet/internal/session"
)

const (
	msgMethodNotAllowed = "Method Not Allowed"
	msgInvalidAction    = "Invalid action specified."
	msgInvalidBody      = "요청 형식이 올바르지 않습니다."
	msgSessionNotFound  = "세션을 찾을 수 없습니다."
	msgProblemNotFound  = "문제를 찾을 수 없습니다."
	msgSuperseded       = "새로운 생성 요청이 진행 중입니다."
	msgTargetGone       = "교체하려던 문제가 이미 삭제되었습니다."
	msgReplacePending   = "이 문제는 이미 교체 중입니다."
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Message: msg})
}

// writeError maps err onto a status code and the message the teacher sees.
// fallback is the message for generation failures that carry no user text.
func writeError(w http.ResponseWriter, err error, fallback string) {
	status, msg := classify(err, fallback)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "status", status, "error", err)
	}
	writeMessage(w, status, msg)
}

func classify(err error, fallback string) (int, string) {
	var (
		verr *options.ValidationError
		cerr *generation.ConfigurationError
		terr *generation.TransportError
		merr *generation.MalformedResponseError
	)
	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, verr.Message
	case errors.As(err, &cerr):
		return http.StatusInternalServerError, generation.MsgConfiguration
	case errors.Is(err, generation.ErrBudgetExceeded):
		return http.StatusTooManyRequests, generation.MsgBudgetExceeded
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, msgSessionNotFound
	case errors.Is(err, session.ErrProblemNotFound):
		return http.StatusNotFound, msgProblemNotFound
	case errors.Is(err, session.ErrSuperseded):
		return http.StatusConflict, msgSuperseded
	case errors.Is(err, session.ErrTargetGone):
		return http.StatusConflict, msgTargetGone
	case errors.Is(err, session.ErrReplacePending):
		return http.StatusConflict, msgReplacePending
	case errors.Is(err, export.ErrNoProblems):
		return http.StatusBadRequest, export.MsgNoProblems
	case errors.As(err, &terr), errors.As(err, &merr):
		return http.StatusBadGateway, fallback
	default:
		return http.StatusInternalServerError, fallback
	}
}

// decodeJSON reads a JSON body into v, rejecting trailing data.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return &options.ValidationError{Message: msgInvalidBody}
	}
	if dec.More() {
		return &options.ValidationError{Message: msgInvalidBody}
	}
	return nil
}

func attachment(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name)
}
