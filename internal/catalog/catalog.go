// Package catalog serves the static trip list and the browse views built on
// it: filtering, featured trips, the next-weekend cohort and availability.
package catalog

import (
	"sort"

	"github.com/example/trip-booking/internal/models"
)

// Catalog is the immutable trip inventory.
type Catalog struct {
	trips []models.Trip
	byID  map[int]int
}

func New(trips []models.Trip) *Catalog {
	c := &Catalog{trips: append([]models.Trip(nil), trips...), byID: make(map[int]int, len(trips))}
	for i, t := range c.trips {
		c.byID[t.ID] = i
	}
	return c
}

// Default returns the built-in catalog.
func Default() *Catalog { return New(seed) }

// All returns a copy of every trip in catalog order.
func (c *Catalog) All() []models.Trip {
	return append([]models.Trip(nil), c.trips...)
}

func (c *Catalog) ByID(id int) (models.Trip, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Trip{}, false
	}
	return c.trips[i], true
}

// Featured returns the top n trips ranked by rating weighted by review count.
func Featured(trips []models.Trip, n int) []models.Trip {
	out := append([]models.Trip(nil), trips...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Rating*float64(out[i].ReviewCount) > out[j].Rating*float64(out[j].ReviewCount)
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}

func NextWeekend(trips []models.Trip) []models.Trip {
	out := make([]models.Trip, 0, len(trips))
	for _, t := range trips {
		if t.IsNextWeekend {
			out = append(out, t)
		}
	}
	return out
}

// Available drops trips that already hold an active booking.
func Available(trips []models.Trip, booked map[int]bool) []models.Trip {
	out := make([]models.Trip, 0, len(trips))
	for _, t := range trips {
		if booked[t.ID] {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Types lists distinct activity types in first-seen order, after the All
// sentinel.
func Types(trips []models.Trip) []string {
	out := []string{All}
	seen := map[string]bool{}
	for _, t := range trips {
		if !seen[t.Type] {
			seen[t.Type] = true
			out = append(out, t.Type)
		}
	}
	return out
}

func Categories(trips []models.Trip) []string {
	out := []string{All}
	seen := map[models.Category]bool{}
	for _, t := range trips {
		if !seen[t.Category] {
			seen[t.Category] = true
			out = append(out, string(t.Category))
		}
	}
	return out
}
