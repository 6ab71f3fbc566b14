package model

import "time"

// Comment is stored at posts/{articleID}/comments/{id}.
// Author fields are snapshots taken when the comment is written.
type Comment struct {
	ID           string    `json:"id"`
	ArticleID    string    `json:"articleId"`
	Content      string    `json:"content"`
	AuthorID     string    `json:"uid"`
	AuthorName   string    `json:"author"`
	AuthorAvatar string    `json:"authorAvatar"`
	CreatedAt    time.Time `json:"createdAt"`
}
