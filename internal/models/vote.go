package models

import "time"

type VoteType string

const (
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

func (t VoteType) Valid() bool {
	return t == VoteUp || t == VoteDown
}

// Vote is identified by the (UserID, SuggestionID) pair.
type Vote struct {
	UserID       string    `json:"userId"`
	SuggestionID string    `json:"suggestionId"`
	Type         VoteType  `json:"type"`
	CreatedAt    time.Time `json:"createdAt"`
}
