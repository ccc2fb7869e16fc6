package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/p-n-ai/pai-worksheet/internal/generation"
	"github.com/p-n-ai/pai-worksheet/internal/options"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

const (
	actionGenerate = "generate"
	actionReplace  = "replace"
)

type generatorRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type replacePayload struct {
	ProblemToReplace problem.Problem `json:"problemToReplace"`
	NewDifficulty    string          `json:"newDifficulty"`
}

// handleGenerator is the stateless action endpoint: the browser owns the set and posts
// either the options to generate from or the problem to replace.
func (s *Server) handleGenerator(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMessage(w, http.StatusMethodNotAllowed, msgMethodNotAllowed)
		return
	}

	var req generatorRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, err, generation.MsgGenerateFailed)
		return
	}

	// Budgets for stateless callers are charged per client address.
	ctx := generation.WithRequester(r.Context(), "addr:"+r.RemoteAddr)
	log := slog.With("action", req.Action, "request_id", middleware.GetReqID(r.Context()))

	switch req.Action {
	case actionGenerate:
		var opts options.Options
		if err := json.Unmarshal(req.Payload, &opts); err != nil {
			writeError(w, &options.ValidationError{Message: msgInvalidBody}, generation.MsgGenerateFailed)
			return
		}
		spec, err := generation.BuildSpec(s.catalog, opts)
		if err != nil {
			writeError(w, err, generation.MsgGenerateFailed)
			return
		}
		problems, err := s.generator.GenerateSet(ctx, spec)
		if err != nil {
			log.Warn("generate failed", "error", err)
			writeError(w, err, generation.MsgGenerateFailed)
			return
		}
		writeJSON(w, http.StatusOK, problems)

	case actionReplace:
		var payload replacePayload
		if err := json.Unmarshal(req.Payload, &payload); err != nil {
			writeError(w, &options.ValidationError{Message: msgInvalidBody}, generation.MsgReplaceFailed)
			return
		}
		d, err := problem.ParseDifficulty(payload.NewDifficulty)
		if err != nil {
			writeError(w, &options.ValidationError{Message: err.Error()}, generation.MsgReplaceFailed)
			return
		}
		np, err := s.generator.ReplaceOne(ctx, payload.ProblemToReplace, d)
		if err != nil {
			log.Warn("replace failed", "error", err)
			writeError(w, err, generation.MsgReplaceFailed)
			return
		}
		writeJSON(w, http.StatusOK, np)

	default:
		writeMessage(w, http.StatusBadRequest, msgInvalidAction)
	}
}
