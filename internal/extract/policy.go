package extract

import (
	"fmt"
	"strings"

	"fbzone/internal/media"
)

// Policy picks the candidate a caller acts on.
type Policy interface {
	Name() string
	Select(set media.CandidateSet) (media.IdentityCandidate, bool)
}

// SecondBest picks the second-ranked candidate when there is more than one.
// The cascade tends to surface a generic or navigational entity first.
type SecondBest struct{}

func (SecondBest) Name() string { return "second-best" }

func (SecondBest) Select(set media.CandidateSet) (media.IdentityCandidate, bool) {
	switch len(set) {
	case 0:
		return media.IdentityCandidate{}, false
	case 1:
		return set[0], true
	default:
		return set[1], true
	}
}

// First picks the top-ranked candidate.
type First struct{}

func (First) Name() string { return "first" }

func (First) Select(set media.CandidateSet) (media.IdentityCandidate, bool) {
	if len(set) == 0 {
		return media.IdentityCandidate{}, false
	}
	return set[0], true
}

// PolicyByName returns the policy registered under name.
func PolicyByName(name string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "second-best":
		return SecondBest{}, nil
	case "first":
		return First{}, nil
	default:
		return nil, fmt.Errorf("unknown selection policy %q (valid: second-best, first)", name)
	}
}
