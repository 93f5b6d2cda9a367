package dialogue

import (
	"errors"

	"github.com/dvloznov/voice-ledger/internal/domain"
)

// ErrNotReady is returned when a commit transition is requested for a record
// that is not ReadyToCommit.
var ErrNotReady = errors.New("dialogue: record is not ready to commit")

// Follow-up prompts, in priority order.
const (
	PromptItem             = "What did you buy?"
	PromptAmount           = "What was the amount?"
	PromptPaymentMethod    = "What payment method?"
	PromptPurchaseLocation = "Online or physical store?"
)

// Prompt returns the fixed follow-up question for a missing slot.
func (f Field) Prompt() string {
	switch f {
	case FieldItem:
		return PromptItem
	case FieldAmount:
		return PromptAmount
	case FieldPaymentMethod:
		return PromptPaymentMethod
	case FieldPurchaseLocation:
		return PromptPurchaseLocation
	}
	return ""
}

// OutcomeKind tells the orchestrator what to do after a turn.
type OutcomeKind string

const (
	// OutcomePrompt asks the user for more information.
	OutcomePrompt OutcomeKind = "Prompt"
	// OutcomeCommitted hands a complete record to the ledger.
	OutcomeCommitted OutcomeKind = "Committed"
	// OutcomeCancelled acknowledges a cancellation.
	OutcomeCancelled OutcomeKind = "Cancelled"
)

// Outcome is the result of one turn.
type Outcome struct {
	Kind OutcomeKind

	// Prompt is the follow-up question when Kind is OutcomePrompt.
	Prompt string
	// Missing is the slot the prompt asks for. Empty when the record is
	// complete and the extractor asked its own question.
	Missing Field

	// Record is the finalized expense when Kind is OutcomeCommitted.
	Record *domain.FinalizedExpense
}

// Session owns one PartialExpense across an unbounded sequence of turns.
// It performs no I/O and is not safe for concurrent use; callers serialize turns.
type Session struct {
	id            string
	partial       *PartialExpense
	turns         int
	lastUtterance string
}

// NewSession creates a session with an empty record.
func NewSession(id string) *Session {
	return &Session{
		id:      id,
		partial: NewPartialExpense(),
	}
}

// ID returns the session handle.
func (s *Session) ID() string {
	return s.id
}

// Turns returns the number of processed turns.
func (s *Session) Turns() int {
	return s.turns
}

// LastUtterance returns the text of the most recent turn.
func (s *Session) LastUtterance() string {
	return s.lastUtterance
}

// Status returns the status of the open record.
func (s *Session) Status() Status {
	return s.partial.Status
}

// Snapshot returns a copy of the open record.
func (s *Session) Snapshot() PartialExpense {
	return s.partial.Clone()
}

// ProcessTurn merges one extraction into the open record and decides whether to
// ask a follow-up question, hand the record over for commit, or cancel.
//
// The utterance is recorded for logging only.
func (s *Session) ProcessTurn(utterance string, ex Extraction) Outcome {
	s.turns++
	s.lastUtterance = utterance

	// Cancellation wins over any data carried in the same turn.
	if ex.CancelRequested {
		s.partial.Status = StatusCancelled
		s.partial = NewPartialExpense()
		return Outcome{Kind: OutcomeCancelled}
	}

	s.partial.merge(ex)
	s.partial.applyDefaults()

	missing, incomplete := s.partial.NextMissing()
	if incomplete || ex.MissingInfoPrompt != "" {
		s.partial.Status = StatusCollecting
		prompt := ex.MissingInfoPrompt
		if prompt == "" {
			prompt = missing.Prompt()
		}
		return Outcome{Kind: OutcomePrompt, Prompt: prompt, Missing: missing}
	}

	s.partial.Status = StatusReadyToCommit
	rec := s.partial.finalize()
	return Outcome{Kind: OutcomeCommitted, Record: &rec}
}

// MarkCommitted closes the ready record after the ledger accepted it and opens a
// fresh one. The closed record is returned.
func (s *Session) MarkCommitted() (PartialExpense, error) {
	if s.partial.Status != StatusReadyToCommit {
		return PartialExpense{}, ErrNotReady
	}
	s.partial.Status = StatusCommitted
	closed := s.partial.Clone()
	s.partial = NewPartialExpense()
	return closed, nil
}

// MarkCommitFailed returns a ready record to Collecting with every slot kept, so
// the next turn can retry the commit.
func (s *Session) MarkCommitFailed() error {
	if s.partial.Status != StatusReadyToCommit {
		return ErrNotReady
	}
	s.partial.Status = StatusCollecting
	return nil
}
