package planner

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mverner/kidplan/internal/model"
)

// RefineReasons are the canned decline reasons a user can pick instead
// of typing free text.
var RefineReasons = map[string]string{
	"cost":        "It costs too much",
	"distance":    "It's too far away",
	"timing":      "The timing doesn't work",
	"disinterest": "My child isn't interested in this",
	"duplicate":   "We already do something like this",
}

// Conversation is a turn-based refinement exchange for a single
// schedule entry. It requests one alternative at a time; a suggestion
// stays provisional (attached to an assistant turn) until accepted, so
// the schedule and ledger are untouched while the conversation runs.
type Conversation struct {
	ID    uuid.UUID                `json:"id"`
	Day   string                   `json:"day"`
	Index int                      `json:"index"`
	Entry model.ScheduleEntry      `json:"entry"`
	Turns []model.ConversationTurn `json:"turns"`

	// Feedback keeps every user response for future planning context,
	// even though the current alternative only needs the exclusions.
	Feedback []string `json:"feedback,omitempty"`

	proposal *model.ScheduleEntry
	rejected []string // activity ids declined within this conversation
}

func newConversation(day string, index int, entry model.ScheduleEntry) *Conversation {
	c := &Conversation{
		ID:    uuid.New(),
		Day:   day,
		Index: index,
		Entry: entry,
	}
	c.addAssistantTurn(fmt.Sprintf(
		"Let's find a better fit than %s for %s. What didn't work about it?",
		entry.ActivityName, entry.ChildName,
	), nil, false)
	return c
}

func (c *Conversation) addAssistantTurn(content string, proposal *model.ScheduleEntry, noAlternative bool) {
	c.Turns = append(c.Turns, model.ConversationTurn{
		ID:            uuid.New(),
		Role:          model.RoleAssistant,
		Content:       content,
		Proposal:      proposal,
		NoAlternative: noAlternative,
		CreatedAt:     time.Now().UTC(),
	})
}

func (c *Conversation) addUserTurn(content string) {
	c.Turns = append(c.Turns, model.ConversationTurn{
		ID:        uuid.New(),
		Role:      model.RoleUser,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	})
	c.Feedback = append(c.Feedback, content)
}

// Proposal returns the suggestion awaiting a decision, if any.
func (c *Conversation) Proposal() *model.ScheduleEntry {
	return c.proposal
}

// snapshot copies the conversation, slices included, so callers can
// marshal it after the session lock is released while the live turns
// keep growing.
func (c *Conversation) snapshot() *Conversation {
	if c == nil {
		return nil
	}
	copied := *c
	copied.Turns = append([]model.ConversationTurn(nil), c.Turns...)
	copied.Feedback = append([]string(nil), c.Feedback...)
	copied.rejected = append([]string(nil), c.rejected...)
	if c.proposal != nil {
		p := *c.proposal
		copied.proposal = &p
	}
	return &copied
}

// exclusions builds the activity ids that must not be re-suggested:
// every currently-declined entry, the entry being refined, and every
// suggestion already rejected within this conversation.
func (c *Conversation) exclusions(declined []string) []string {
	seen := make(map[string]struct{})
	var out []string
	add := func(id string) {
		if id == "" {
			return
		}
		if _, ok := seen[id]; ok {
			return
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	for _, id := range declined {
		add(id)
	}
	add(c.Entry.ActivityID)
	for _, id := range c.rejected {
		add(id)
	}
	return out
}
