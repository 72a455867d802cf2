package models

import (
	"math"
	"time"
)

type PollOption struct {
	ID    string `bson:"id" json:"id"`
	Text  string `bson:"text" json:"text"`
	Votes int64  `bson:"votes" json:"votes"`
}

// Poll is attached to a comment or an update. Options are fixed once the
// first vote is cast; only tallies change after that.
type Poll struct {
	Question  string       `bson:"question" json:"question"`
	ExpiresAt time.Time    `bson:"expires_at" json:"expiresAt"`
	Options   []PollOption `bson:"options" json:"options"`
}

func (p *Poll) TotalVotes() int64 {
	var total int64
	for _, o := range p.Options {
		total += o.Votes
	}
	return total
}

func (p *Poll) HasVotes() bool {
	return p.TotalVotes() > 0
}

func (p *Poll) IsClosed(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

func (p *Poll) Option(id string) (*PollOption, bool) {
	for i := range p.Options {
		if p.Options[i].ID == id {
			return &p.Options[i], true
		}
	}
	return nil, false
}

// PollOptionResult is one row of a rendered poll.
type PollOptionResult struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Votes   int64  `json:"votes"`
	Percent int    `json:"percent"`
	Leading bool   `json:"leading"`
}

// PollView is a poll as seen by one viewer.
type PollView struct {
	Question      string             `json:"question"`
	ExpiresAt     time.Time          `json:"expiresAt"`
	Options       []PollOptionResult `json:"options"`
	TotalVotes    int64              `json:"totalVotes"`
	VotedOptionID *string            `json:"votedOptionId"`
	Closed        bool               `json:"closed"`
	ShowResults   bool               `json:"showResults"`
}

// Percent rounds votes/total to the nearest whole percent. A poll with no
// votes yields 0 for every option.
func Percent(votes, total int64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(float64(votes) * 100 / float64(total)))
}

// Results computes percentages and the leading flag for each option.
// Every option tied at the highest non-zero count is leading.
func Results(options []PollOption) ([]PollOptionResult, int64) {
	var total, max int64
	for _, o := range options {
		total += o.Votes
		if o.Votes > max {
			max = o.Votes
		}
	}
	out := make([]PollOptionResult, len(options))
	for i, o := range options {
		out[i] = PollOptionResult{
			ID:      o.ID,
			Text:    o.Text,
			Votes:   o.Votes,
			Percent: Percent(o.Votes, total),
			Leading: max > 0 && o.Votes == max,
		}
	}
	return out, total
}

// View renders the poll for a viewer who voted for votedOptionID (nil if
// they have not voted).
func (p *Poll) View(votedOptionID *string, now time.Time) PollView {
	results, total := Results(p.Options)
	closed := p.IsClosed(now)
	return PollView{
		Question:      p.Question,
		ExpiresAt:     p.ExpiresAt,
		Options:       results,
		TotalVotes:    total,
		VotedOptionID: votedOptionID,
		Closed:        closed,
		ShowResults:   closed || votedOptionID != nil,
	}
}

// WithVote returns a copy of v with one vote added to optionID and the
// viewer marked as having voted for it. Percentages and leading flags are
// recomputed.
func (v PollView) WithVote(optionID string) PollView {
	options := make([]PollOption, len(v.Options))
	for i, o := range v.Options {
		options[i] = PollOption{ID: o.ID, Text: o.Text, Votes: o.Votes}
		if o.ID == optionID {
			options[i].Votes++
		}
	}
	results, total := Results(options)
	voted := optionID
	v.Options = results
	v.TotalVotes = total
	v.VotedOptionID = &voted
	v.ShowResults = true
	return v
}
