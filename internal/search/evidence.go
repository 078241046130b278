package search

import "sort"

// Evidence is one channel's belief that a query maps to a verb. Scores are
// raw channel outputs in [0, 1]; fusion does not rescale them.
type Evidence struct {
	Verb    string
	Score   float64
	Channel string
}

// Candidate is a verb with fused evidence.
type Candidate struct {
	Verb  string  `json:"verb"`
	Score float64 `json:"score"`
	// Channels lists which channels contributed, in accumulation order.
	Channels []string `json:"channels,omitempty"`
}

// accumulator fuses evidence per verb by max of raw scores. A verb seen by
// several channels keeps its best single-channel score; it does not sum, so
// many weak signals cannot outrank one strong one.
type accumulator struct {
	byVerb map[string]*Candidate
}

func newAccumulator() *accumulator {
	return &accumulator{byVerb: make(map[string]*Candidate)}
}

func (a *accumulator) add(ev Evidence) {
	c, ok := a.byVerb[ev.Verb]
	if !ok {
		a.byVerb[ev.Verb] = &Candidate{Verb: ev.Verb, Score: ev.Score, Channels: []string{ev.Channel}}
		return
	}
	if ev.Score > c.Score {
		c.Score = ev.Score
	}
	c.Channels = append(c.Channels, ev.Channel)
}

// ranked returns candidates sorted by score descending, verb ascending.
// Verb-name tiebreak keeps the ranking deterministic across runs.
func (a *accumulator) ranked() []Candidate {
	out := make([]Candidate, 0, len(a.byVerb))
	for _, c := range a.byVerb {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Verb < out[j].Verb
	})
	return out
}
