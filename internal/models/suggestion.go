package models

import (
	"fmt"
	"time"
)

// Vote is one user's vote on a suggestion.
type Vote int

const (
	VoteDown Vote = -1
	VoteNone Vote = 0
	VoteUp   Vote = 1
)

// Valid reports whether v is one of the three vote values.
func (v Vote) Valid() bool {
	return v >= VoteDown && v <= VoteUp
}

func (v Vote) String() string {
	switch v {
	case VoteUp:
		return "up"
	case VoteDown:
		return "down"
	case VoteNone:
		return "none"
	default:
		return fmt.Sprintf("Vote(%d)", int(v))
	}
}

// ParseVote parses "up", "down", "none" or "+1", "-1", "0".
func ParseVote(s string) (Vote, error) {
	switch s {
	case "up", "+1", "1":
		return VoteUp, nil
	case "down", "-1":
		return VoteDown, nil
	case "none", "0", "clear":
		return VoteNone, nil
	default:
		return VoteNone, fmt.Errorf("invalid vote %q", s)
	}
}

// Suggestion is a collaboratively proposed translation.
type Suggestion struct {
	ID          string    `json:"id"`
	Word        string    `json:"word"`
	Description string    `json:"description"`
	SubmittedBy string    `json:"submitted_by"`
	CreatedAt   time.Time `json:"created_at"`
	IsApproved  bool      `json:"is_approved"`
	Score       int       `json:"score"`
	UserVote    Vote      `json:"user_vote"`
}
