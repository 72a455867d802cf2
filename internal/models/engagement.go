package models

import (
	"fmt"
	"time"

	"greendrake/localboard/internal/utils"
)

// TargetType is the kind of item an engagement edge points at.
type TargetType string

const (
	TargetUpdate  TargetType = "update"
	TargetComment TargetType = "comment"
)

func ParseTargetType(s string) (TargetType, error) {
	switch TargetType(s) {
	case TargetUpdate, TargetComment:
		return TargetType(s), nil
	}
	return "", fmt.Errorf("unknown target type %q", s)
}

// Target identifies a likeable or pollable item.
type Target struct {
	Type TargetType  `bson:"target_type" json:"type"`
	ID   utils.SixID `bson:"target_id" json:"id"`
}

// Like is a (user, target) edge. At most one exists per pair.
type Like struct {
	Target    `bson:",inline"`
	UserID    utils.SixID `bson:"user_id"`
	CreatedAt time.Time   `bson:"created_at"`
}

// Pin showcases an update on its author's profile.
type Pin struct {
	UserID    utils.SixID `bson:"user_id" json:"userId"`
	UpdateID  utils.SixID `bson:"update_id" json:"updateId"`
	CreatedAt time.Time   `bson:"created_at" json:"createdAt"`
}

// PollVote is permanent: there is no retraction or change.
type PollVote struct {
	Target    `bson:",inline"`
	UserID    utils.SixID `bson:"user_id"`
	OptionID  string      `bson:"option_id"`
	CreatedAt time.Time   `bson:"created_at"`
}

// LikeState is the authoritative answer to a like toggle.
type LikeState struct {
	Liked      bool  `json:"liked"`
	LikesCount int64 `json:"likesCount"`
}
