package httpapi

import (
	"net/http"

	"github.com/p-n-ai/pai-worksheet/internal/curriculum"
	"github.com/p-n-ai/pai-worksheet/internal/options"
	"github.com/p-n-ai/pai-worksheet/internal/problem"
)

type difficultyInfo struct {
	Value      problem.Difficulty `json:"value"`
	Label      string             `json:"label"`
	Definition string             `json:"definition"`
}

type catalogResponse struct {
	Grades                []curriculum.Grade `json:"grades"`
	Difficulties          []difficultyInfo   `json:"difficulties"`
	MaxCountPerDifficulty int                `json:"maxCountPerDifficulty"`
	DefaultOptions        options.Options    `json:"defaultOptions"`
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	resp := catalogResponse{
		Grades:                s.catalog.Grades(),
		MaxCountPerDifficulty: options.MaxCountPerDifficulty,
		DefaultOptions:        options.Default(),
	}
	for _, d := range problem.Difficulties {
		resp.Difficulties = append(resp.Difficulties, difficultyInfo{
			Value:      d,
			Label:      d.Label(),
			Definition: d.Definition(),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
