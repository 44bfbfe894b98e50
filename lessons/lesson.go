// Package lessons contains the runnable cookbook lessons. Each lesson is a
// linear walkthrough of one orchestration pattern that prints what it
// observes to Env.Out.
package lessons

import (
	"context"
	"sort"
	"strconv"
	"strings"
)

// Lesson is one runnable tutorial.
type Lesson struct {
	ID      string
	Slug    string
	Title   string
	Summary string
	Run     func(ctx context.Context, env *Env) error
}

// All returns every lesson sorted by ID.
func All() []Lesson {
	out := make([]Lesson, len(registry))
	copy(out, registry)

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })

	return out
}

// Lookup finds a lesson by ID ("7", "007") or slug.
func Lookup(idOrSlug string) (Lesson, bool) {
	key := strings.ToLower(strings.TrimSpace(idOrSlug))

	if n, err := strconv.Atoi(key); err == nil {
		key = padID(n)
	}

	for _, l := range registry {
		if l.ID == key || l.Slug == key {
			return l, true
		}
	}

	return Lesson{}, false
}

func padID(n int) string {
	s := strconv.Itoa(n)
	for len(s) < 3 {
		s = "0" + s
	}

	return s
}
