package model

import (
	"time"

	"github.com/google/uuid"
)

type TurnRole string

const (
	RoleAssistant TurnRole = "assistant"
	RoleUser      TurnRole = "user"
)

// ConversationTurn is one exchange in a refinement conversation. An
// assistant turn may carry a proposed replacement entry; the proposal is
// provisional and does not touch the schedule until accepted.
type ConversationTurn struct {
	ID            uuid.UUID      `json:"id"`
	Role          TurnRole       `json:"role"`
	Content       string         `json:"content"`
	Proposal      *ScheduleEntry `json:"proposal,omitempty"`
	NoAlternative bool           `json:"no_alternative,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}
