package domain

import "time"

// Attribution records who touched an issue and when.
type Attribution struct {
	ActorID   string    `json:"id"`
	ActorName string    `json:"name"`
	Timestamp time.Time `json:"time"`
}

// AppendAttribution adds an entry to the end of the log; earlier entries are never rewritten.
func (i *Issue) AppendAttribution(actor Identity, at time.Time) {
	i.UpdatedBy = append(i.UpdatedBy, Attribution{
		ActorID:   actor.ID,
		ActorName: actor.Name,
		Timestamp: at,
	})
}

// LastTouchedBy returns the most recent attribution, if any.
func (i *Issue) LastTouchedBy() (Attribution, bool) {
	if len(i.UpdatedBy) == 0 {
		return Attribution{}, false
	}
	return i.UpdatedBy[len(i.UpdatedBy)-1], true
}
