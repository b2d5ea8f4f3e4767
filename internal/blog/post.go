package blog

import (
	"errors"
	"time"
)

// DateLayout is how post and comment dates are stored and shown, e.g. "August 24, 2023".
const DateLayout = "January 02, 2006"

var (
	ErrPostNotFound   = errors.New("post not found")
	ErrPostTitleTaken = errors.New("post title already used")
)

type Post struct {
	ID         int       `json:"id"`
	Title      string    `json:"title"`
	Subtitle   string    `json:"subtitle"`
	Date       string    `json:"date"`
	Body       string    `json:"body"`
	ImgURL     string    `json:"img_url"`
	AuthorID   int       `json:"author_id"`
	AuthorName string    `json:"author_name"`
	CreatedAt  time.Time `json:"created_at"`
}

type Comment struct {
	ID          int    `json:"id"`
	Body        string `json:"body"`
	Date        string `json:"date"`
	AuthorID    int    `json:"author_id"`
	AuthorName  string `json:"author_name"`
	AuthorEmail string `json:"author_email"`
	PostID      int    `json:"post_id"`
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
