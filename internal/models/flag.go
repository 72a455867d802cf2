package models

import (
	"fmt"
	"strings"
	"time"

	"greendrake/localboard/internal/utils"
)

// FlagReason is the closed set of reasons a listing can be reported for.
type FlagReason string

const (
	FlagReasonSpam          FlagReason = "SPAM"
	FlagReasonInappropriate FlagReason = "INAPPROPRIATE"
	FlagReasonScam          FlagReason = "SCAM"
	FlagReasonDuplicate     FlagReason = "DUPLICATE"
	FlagReasonWrongCategory FlagReason = "WRONG_CATEGORY"
	FlagReasonOther         FlagReason = "OTHER"
)

const MaxFlagDescriptionLength = 500

func (r FlagReason) Valid() bool {
	switch r {
	case FlagReasonSpam, FlagReasonInappropriate, FlagReasonScam, FlagReasonDuplicate, FlagReasonWrongCategory, FlagReasonOther:
		return true
	}
	return false
}

func ParseFlagReason(s string) (FlagReason, error) {
	r := FlagReason(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("unknown flag reason %q", s)
	}
	return r, nil
}

// Flag is a user report against a listing.
type Flag struct {
	ID          utils.SixID `bson:"_id" json:"id"`
	ListingID   utils.SixID `bson:"listing_id" json:"listingId"`
	ReporterID  utils.SixID `bson:"reporter_id" json:"-"`
	Reason      FlagReason  `bson:"reason" json:"reason"`
	Description string      `bson:"description,omitempty" json:"description,omitempty"`
	CreatedAt   time.Time   `bson:"created_at" json:"createdAt"`
}
