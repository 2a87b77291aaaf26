package organisations

import "time"

// Organisation is a group of users with exactly one owner. Ownership and
// membership are separate relations: the owner is not implicitly a member.
type Organisation struct {
	ID          string    `json:"orgId"`
	OwnerID     string    `json:"-"` // Fixed at creation
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"-"`
}

// Summary is the public view of an organisation returned to clients.
type Summary struct {
	OrgID       string `json:"orgId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (o *Organisation) Summary() Summary {
	return Summary{
		OrgID:       o.ID,
		Name:        o.Name,
		Description: o.Description,
	}
}

func Summaries(orgs []*Organisation) []Summary {
	out := make([]Summary, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, o.Summary())
	}
	return out
}
