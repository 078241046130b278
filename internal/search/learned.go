package search

import "github.com/halcyonfs/obdsl/internal/store"

// learnedEntry is one phrase-to-verb association inside an index snapshot.
// The feedback score stays in the store as calibration data; an exact hit
// on a confirmed phrase serves as authoritative regardless of it.
type learnedEntry struct {
	Verb string
}

// LearnedIndex is an immutable snapshot of confirmed phrase-verb pairs.
// Searches read whichever snapshot the atomic pointer holds; rebuilds swap
// in a fresh one, so no locking on the read path.
type LearnedIndex struct {
	global map[string][]learnedEntry            // phrase -> entries
	user   map[string]map[string][]learnedEntry // user -> phrase -> entries
}

func emptyLearnedIndex() *LearnedIndex {
	return &LearnedIndex{
		global: map[string][]learnedEntry{},
		user:   map[string]map[string][]learnedEntry{},
	}
}

// buildLearnedIndex constructs a snapshot from stored feedback. Input order
// from the store is deterministic, so two builds over the same rows produce
// identical entry ordering.
func buildLearnedIndex(phrases []store.LearnedPhrase) *LearnedIndex {
	idx := emptyLearnedIndex()
	for _, lp := range phrases {
		key := Normalize(lp.Phrase)
		entry := learnedEntry{Verb: lp.Verb}
		if lp.UserID == "" {
			idx.global[key] = append(idx.global[key], entry)
			continue
		}
		byPhrase, ok := idx.user[lp.UserID]
		if !ok {
			byPhrase = map[string][]learnedEntry{}
			idx.user[lp.UserID] = byPhrase
		}
		byPhrase[key] = append(byPhrase[key], entry)
	}
	return idx
}

// Global returns global associations for an exact normalized phrase.
func (idx *LearnedIndex) Global(phrase string) []learnedEntry {
	return idx.global[phrase]
}

// ForUser returns one user's associations for an exact normalized phrase.
func (idx *LearnedIndex) ForUser(userID, phrase string) []learnedEntry {
	if byPhrase, ok := idx.user[userID]; ok {
		return byPhrase[phrase]
	}
	return nil
}

// Size returns the number of indexed phrase entries, for logging.
func (idx *LearnedIndex) Size() int {
	n := 0
	for _, es := range idx.global {
		n += len(es)
	}
	for _, byPhrase := range idx.user {
		for _, es := range byPhrase {
			n += len(es)
		}
	}
	return n
}
