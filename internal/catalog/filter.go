package catalog

import (
	"strings"

	"github.com/example/trip-booking/internal/models"
)

// All is the sentinel that disables a difficulty, type or category filter.
const All = "All"

// Criteria are the four browse filters. Zero values match everything.
type Criteria struct {
	Query      string `json:"query"`
	Difficulty string `json:"difficulty"`
	Type       string `json:"type"`
	Category   string `json:"category"`
}

func DefaultCriteria() Criteria {
	return Criteria{Difficulty: All, Type: All, Category: All}
}

// Active reports whether any filter narrows the list.
func (c Criteria) Active() bool {
	return c.Query != "" || !isAll(c.Difficulty) || !isAll(c.Type) || !isAll(c.Category)
}

var difficultyLabels = map[string]models.Difficulty{
	"Facile":    models.DifficultyEasy,
	"Moyen":     models.DifficultyMedium,
	"Difficile": models.DifficultyDifficult,
}

func isAll(v string) bool { return v == "" || v == All || v == "Tous" }

// canonicalDifficulty maps a localised label or canonical value to the enum.
// Unknown labels map to an empty difficulty which matches nothing.
func canonicalDifficulty(label string) models.Difficulty {
	if d, ok := difficultyLabels[label]; ok {
		return d
	}
	if d := models.Difficulty(label); d.Valid() {
		return d
	}
	return ""
}

// Matches reports whether t satisfies every predicate of c.
func (c Criteria) Matches(t models.Trip) bool {
	if q := strings.ToLower(c.Query); q != "" {
		if !strings.Contains(strings.ToLower(t.Title), q) && !strings.Contains(strings.ToLower(t.Destination), q) {
			return false
		}
	}
	if !isAll(c.Difficulty) && t.Difficulty != canonicalDifficulty(c.Difficulty) {
		return false
	}
	if !isAll(c.Type) && t.Type != c.Type {
		return false
	}
	if !isAll(c.Category) && string(t.Category) != canonicalCategory(c.Category) {
		return false
	}
	return true
}

func canonicalCategory(v string) string {
	if v == "Randonnée" {
		return string(models.CategoryHike)
	}
	return v
}

// Filter keeps the trips matching c, preserving input order.
func Filter(trips []models.Trip, c Criteria) []models.Trip {
	out := make([]models.Trip, 0, len(trips))
	for _, t := range trips {
		if c.Matches(t) {
			out = append(out, t)
		}
	}
	return out
}

type Status string

const (
	StatusOK               Status = "ok"
	StatusNothingScheduled Status = "nothing_scheduled"
	StatusNoResults        Status = "no_results"
)

type Result struct {
	Trips         []models.Trip `json:"trips"`
	Status        Status        `json:"status"`
	FiltersActive bool          `json:"filtersActive"`
	Types         []string      `json:"types"`
	Categories    []string      `json:"categories"`
}

// Search filters trips and tells an empty inventory apart from filters that
// are too narrow.
func Search(trips []models.Trip, c Criteria) Result {
	res := Result{
		Trips:         Filter(trips, c),
		Status:        StatusOK,
		FiltersActive: c.Active(),
		Types:         Types(trips),
		Categories:    Categories(trips),
	}
	switch {
	case len(trips) == 0:
		res.Status = StatusNothingScheduled
	case len(res.Trips) == 0:
		res.Status = StatusNoResults
	}
	return res
}
