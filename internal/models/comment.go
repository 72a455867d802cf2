package models

import (
	"fmt"
	"time"

	"greendrake/localboard/internal/utils"
)

// ParentType names the kind of content a comment hangs off.
type ParentType string

const (
	ParentUpdate  ParentType = "update"
	ParentListing ParentType = "listing"
)

const (
	MaxUpdateCommentLength  = 2000
	MaxListingCommentLength = 1000
	MaxUpdateLength         = 2000
)

// MaxCommentLength is the content cap for comments under p.
func (p ParentType) MaxCommentLength() int {
	switch p {
	case ParentUpdate:
		return MaxUpdateCommentLength
	case ParentListing:
		return MaxListingCommentLength
	default:
		panic(fmt.Sprintf("unhandled parent type %q", string(p)))
	}
}

func (p ParentType) Valid() bool {
	return p == ParentUpdate || p == ParentListing
}

// Attachments are optional media links on a post or comment.
type Attachments struct {
	ImageURL string `bson:"image_url,omitempty" json:"imageUrl,omitempty"`
	GifURL   string `bson:"gif_url,omitempty" json:"gifUrl,omitempty"`
	VideoURL string `bson:"video_url,omitempty" json:"videoUrl,omitempty"`
}

type Comment struct {
	ID           utils.SixID `bson:"_id" json:"id"`
	ParentType   ParentType  `bson:"parent_type" json:"parentType"`
	ParentID     utils.SixID `bson:"parent_id" json:"parentId"`
	AuthorID     utils.SixID `bson:"author_id" json:"authorId"`
	AuthorHandle string      `bson:"author_handle" json:"authorHandle"`
	Content      string      `bson:"content" json:"content"`
	Mentions     []string    `bson:"mentions,omitempty" json:"mentions,omitempty"`
	Attachments  Attachments `bson:"attachments" json:"attachments"`
	Poll         *Poll       `bson:"poll,omitempty" json:"-"`
	LikesCount   int64       `bson:"likes_count" json:"likesCount"`
	CreatedAt    time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt    time.Time   `bson:"updated_at" json:"updatedAt"`
	EditedAt     *time.Time  `bson:"edited_at,omitempty" json:"editedAt,omitempty"`
}

// Update is a feed post.
type Update struct {
	ID            utils.SixID `bson:"_id" json:"id"`
	AuthorID      utils.SixID `bson:"author_id" json:"authorId"`
	AuthorHandle  string      `bson:"author_handle" json:"authorHandle"`
	Content       string      `bson:"content" json:"content"`
	Mentions      []string    `bson:"mentions,omitempty" json:"mentions,omitempty"`
	Attachments   Attachments `bson:"attachments" json:"attachments"`
	Poll          *Poll       `bson:"poll,omitempty" json:"-"`
	LikesCount    int64       `bson:"likes_count" json:"likesCount"`
	CommentsCount int64       `bson:"comments_count" json:"commentsCount"`
	CreatedAt     time.Time   `bson:"created_at" json:"createdAt"`
	UpdatedAt     time.Time   `bson:"updated_at" json:"updatedAt"`
}
