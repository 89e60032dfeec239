package models

import "time"

// ClarificationPending is one open clarification request awaiting an answer.
type ClarificationPending struct {
	FilterName        string    `json:"filterName"`
	OriginalUserInput string    `json:"originalUserInput"`
	CandidateValues   []string  `json:"candidateValues"`
	CreatedAt         time.Time `json:"createdAt"`
}

// ResolvedFilter retains an already-resolved intent so a later confirmation
// can finalize the complete filter set.
type ResolvedFilter struct {
	FilterName string          `json:"filterName"`
	Value      string          `json:"value"`
	Operator   FilterOperator  `json:"operator"`
	Logical    LogicalOperator `json:"logicalOperator"`
}

// ConversationState is everything the engine remembers about one conversation.
type ConversationState struct {
	ConversationID string                 `json:"conversationId"`
	Pending        []ClarificationPending `json:"pending"`
	Resolved       []ResolvedFilter       `json:"resolved"`
	LastActivity   time.Time              `json:"lastActivity"`
}

// IsIdle reports whether the conversation has been inactive longer than timeout.
func (s *ConversationState) IsIdle(timeout time.Duration) bool {
	return time.Since(s.LastActivity) > timeout
}

// PendingFor returns the open clarification for filterName, if any.
func (s *ConversationState) PendingFor(filterName string) (ClarificationPending, bool) {
	for _, p := range s.Pending {
		if p.FilterName == filterName {
			return p, true
		}
	}
	return ClarificationPending{}, false
}

// RemovePending drops the open clarification for filterName and reports
// whether one was removed.
func (s *ConversationState) RemovePending(filterName string) bool {
	for i, p := range s.Pending {
		if p.FilterName == filterName {
			s.Pending = append(s.Pending[:i], s.Pending[i+1:]...)
			return true
		}
	}
	return false
}

// Touch updates the last-activity timestamp.
func (s *ConversationState) Touch() {
	s.LastActivity = time.Now().UTC()
}
