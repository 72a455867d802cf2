package models

import (
	"time"

	"greendrake/localboard/internal/utils"
)

// JobPosting is a company-posted role surfaced under the "jobs" filter of a
// location feed. It is not a listing category.
type JobPosting struct {
	ID           utils.SixID `bson:"_id" json:"id"`
	CompanyName  string      `bson:"company_name" json:"companyName"`
	Title        string      `bson:"title" json:"title"`
	LocationSlug string      `bson:"location_slug" json:"locationSlug"`
	URL          string      `bson:"url" json:"url"`
	Remote       bool        `bson:"remote" json:"remote"`
	Active       bool        `bson:"active" json:"-"`
	CreatedAt    time.Time   `bson:"created_at" json:"createdAt"`
}
