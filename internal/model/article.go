package model

import (
	"fmt"
	"slices"
	"time"
)

// Tags offered by the editor. Articles may only carry tags from this list.
var ArticleTags = []string{
	"Assignment",
	"Lecture Notes",
	"Event",
	"Question",
	"Discussion",
	"Job Opportunity",
	"Study Group",
}

// IsKnownTag reports whether tag is part of the editor vocabulary.
func IsKnownTag(tag string) bool {
	return slices.Contains(ArticleTags, tag)
}

// Article is a post stored at posts/{id}.
//
// AuthorName is a denormalized snapshot taken at creation time; it does not
// follow later profile renames. Upvotes and Downvotes are sets of principal
// IDs; a principal appears in at most one of them.
type Article struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Tags       []string  `json:"tags"`
	AuthorID   string    `json:"uid"`
	AuthorName string    `json:"author"`
	CreatedAt  time.Time `json:"createdAt"`
	Upvotes    []string  `json:"upvotes"`
	Downvotes  []string  `json:"downvotes"`
}

// Score is upvotes minus downvotes.
func (a *Article) Score() int {
	return len(a.Upvotes) - len(a.Downvotes)
}

// VoteOf returns the principal's current vote on the article, or "" if none.
func (a *Article) VoteOf(principalID string) VoteType {
	switch {
	case slices.Contains(a.Upvotes, principalID):
		return VoteUp
	case slices.Contains(a.Downvotes, principalID):
		return VoteDown
	}
	return VoteNone
}

// VoteType is the kind of vote a principal casts on an article.
type VoteType string

const (
	VoteNone VoteType = ""
	VoteUp   VoteType = "upvote"
	VoteDown VoteType = "downvote"
)

// ParseVoteType validates a vote type coming from a request body.
func ParseVoteType(s string) (VoteType, error) {
	switch VoteType(s) {
	case VoteUp, VoteDown:
		return VoteType(s), nil
	}
	return VoteNone, fmt.Errorf("unknown vote type %q", s)
}

// Opposite returns the other vote type.
func (v VoteType) Opposite() VoteType {
	switch v {
	case VoteUp:
		return VoteDown
	case VoteDown:
		return VoteUp
	}
	return VoteNone
}
