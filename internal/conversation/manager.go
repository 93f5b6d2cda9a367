// Package conversation runs expense dialogues: it owns the open sessions, calls
// the extractor for each utterance, feeds the result to the dialogue state
// machine and appends completed expenses to the ledger.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/voice-ledger/internal/dialogue"
	"github.com/dvloznov/voice-ledger/internal/domain"
	"github.com/dvloznov/voice-ledger/internal/extractor"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/dvloznov/voice-ledger/internal/ledger"
	"github.com/dvloznov/voice-ledger/internal/logger"
	"github.com/dvloznov/voice-ledger/internal/metrics"
	"github.com/dvloznov/voice-ledger/internal/recordings"
	"github.com/dvloznov/voice-ledger/internal/speech"
)

var (
	// ErrSessionNotFound is returned for unknown, ended or foreign session handles.
	ErrSessionNotFound = errors.New("session not found")
	// ErrAudioUnsupported is returned by HandleAudio when no transcriber is configured.
	ErrAudioUnsupported = errors.New("audio input is not configured")
)

// User-facing replies.
const (
	ReplyCancelled       = "Cancelled."
	ReplyExtractFailed   = "Sorry, I couldn't process that."
	ReplyNothingHeard    = "I didn't hear anything."
	ReplyNotUnderstood   = "I didn't understand. Could you repeat?"
	ReplyConnectionError = "Connection error."
)

// ReplyKind classifies a reply.
type ReplyKind string

const (
	KindPrompt            ReplyKind = "prompt"
	KindCommitted         ReplyKind = "committed"
	KindCancelled         ReplyKind = "cancelled"
	KindCommitFailed      ReplyKind = "commit_failed"
	KindExtractionFailed  ReplyKind = "extraction_failed"
	KindNothingHeard      ReplyKind = "nothing_heard"
	KindNotUnderstood     ReplyKind = "not_understood"
	KindTranscriptionFail ReplyKind = "transcription_failed"
)

// Reply is the single response produced for every turn.
type Reply struct {
	SessionID string    `json:"session_id"`
	Kind      ReplyKind `json:"kind"`
	Text      string    `json:"text"`

	Missing dialogue.Field           `json:"missing,omitempty"`
	Expense *domain.FinalizedExpense `json:"expense,omitempty"`

	Transcript   string `json:"transcript,omitempty"`
	RecordingURI string `json:"recording_uri,omitempty"`

	State dialogue.PartialExpense `json:"state"`
}

// SessionInfo describes an open session.
type SessionInfo struct {
	ID         string                  `json:"id"`
	Owner      string                  `json:"owner,omitempty"`
	LedgerID   string                  `json:"ledger_id,omitempty"`
	Turns      int                     `json:"turns"`
	Status     dialogue.Status         `json:"status"`
	State      dialogue.PartialExpense `json:"state"`
	CreatedAt  time.Time               `json:"created_at"`
	LastActive time.Time               `json:"last_active"`
}

// Options wires a Manager. Sink is required; Extractor is required for text
// turns and Transcriber for audio turns. The rest is optional.
type Options struct {
	Extractor   extractor.Extractor
	Transcriber speech.Transcriber
	Sink        ledger.Sink
	Publisher   jobs.Publisher
	Archive     recordings.Archive

	// StatusTag is written with every expense; defaults to domain.StatusConfirmed.
	StatusTag string

	Now   func() time.Time
	NewID func() string
	Log   zerolog.Logger
}

type entry struct {
	mu         sync.Mutex
	session    *dialogue.Session
	owner      string
	ledgerID   string
	createdAt  time.Time
	lastActive time.Time
	// ended is set under mu when the session is removed, so a turn that was
	// waiting for mu does not run against a discarded session.
	ended bool
}

func (e *entry) info() SessionInfo {
	return SessionInfo{
		ID:         e.session.ID(),
		Owner:      e.owner,
		LedgerID:   e.ledgerID,
		Turns:      e.session.Turns(),
		Status:     e.session.Status(),
		State:      e.session.Snapshot(),
		CreatedAt:  e.createdAt,
		LastActive: e.lastActive,
	}
}

// Manager holds independent sessions. Turns of one session are serialized;
// different sessions proceed concurrently.
type Manager struct {
	opts Options

	mu       sync.RWMutex
	sessions map[string]*entry
}

// NewManager creates a manager.
func NewManager(opts Options) *Manager {
	if opts.StatusTag == "" {
		opts.StatusTag = domain.StatusConfirmed
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = func() string { return uuid.New().String() }
	}
	return &Manager{
		opts:     opts,
		sessions: make(map[string]*entry),
	}
}

// StartSession opens a session for owner whose expenses go to ledgerID. Both may
// be empty in single-user setups.
func (m *Manager) StartSession(owner, ledgerID string) SessionInfo {
	now := m.opts.Now()
	e := &entry{
		session:    dialogue.NewSession(m.opts.NewID()),
		owner:      owner,
		ledgerID:   ledgerID,
		createdAt:  now,
		lastActive: now,
	}

	m.mu.Lock()
	m.sessions[e.session.ID()] = e
	m.mu.Unlock()

	metrics.OpenSessions.Inc()
	m.opts.Log.Info().Str("session_id", e.session.ID()).Str("owner", owner).Msg("Session started")
	return e.info()
}

// EndSession discards a session and whatever it was collecting.
// A turn in progress finishes first; turns waiting behind it are refused.
func (m *Manager) EndSession(ctx context.Context, id string) error {
	e, err := m.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	e.ended = true
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	metrics.OpenSessions.Dec()
	m.opts.Log.Info().Str("session_id", id).Msg("Session ended")
	return nil
}

// Snapshot describes a session.
func (m *Manager) Snapshot(ctx context.Context, id string) (SessionInfo, error) {
	e, err := m.acquire(ctx, id)
	if err != nil {
		return SessionInfo{}, err
	}
	defer e.mu.Unlock()
	return e.info(), nil
}

// Sweep ends sessions idle for longer than maxIdle and returns how many were removed.
func (m *Manager) Sweep(maxIdle time.Duration) int {
	cutoff := m.opts.Now().Add(-maxIdle)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, e := range m.sessions {
		if !e.mu.TryLock() {
			continue
		}
		idle := e.lastActive.Before(cutoff)
		if idle {
			e.ended = true
		}
		e.mu.Unlock()

		if idle {
			delete(m.sessions, id)
			removed++
			metrics.OpenSessions.Dec()
		}
	}
	if removed > 0 {
		m.opts.Log.Info().Int("removed", removed).Msg("Idle sessions swept")
	}
	return removed
}

// HandleUtterance runs one text turn: extract, merge, decide and, when the
// expense is complete, append it to the ledger.
func (m *Manager) HandleUtterance(ctx context.Context, id, text string) (Reply, error) {
	e, err := m.acquire(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	defer e.mu.Unlock()
	if m.opts.Extractor == nil {
		return Reply{}, fmt.Errorf("HandleUtterance: no extractor configured")
	}
	return m.utterance(ctx, e, text), nil
}

// HandleExtraction runs one turn with an extraction obtained elsewhere.
func (m *Manager) HandleExtraction(ctx context.Context, id, text string, ex dialogue.Extraction) (Reply, error) {
	e, err := m.acquire(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	defer e.mu.Unlock()
	return m.turn(ctx, e, text, ex), nil
}

// HandleAudio transcribes a recording and runs it as a text turn. Short or
// unintelligible recordings get a retry prompt and leave the session untouched.
func (m *Manager) HandleAudio(ctx context.Context, id string, audio []byte, mimeType string) (Reply, error) {
	e, err := m.acquire(ctx, id)
	if err != nil {
		return Reply{}, err
	}
	defer e.mu.Unlock()
	if m.opts.Transcriber == nil {
		return Reply{}, ErrAudioUnsupported
	}

	log := logger.ForSession(logger.FromContext(ctx), id)
	e.lastActive = m.opts.Now()

	var recordingURI string
	if m.opts.Archive != nil && len(audio) >= speech.MinAudioBytes {
		uri, err := m.opts.Archive.Save(ctx, id, e.session.Turns()+1, audio, mimeType)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to archive recording")
		}
		recordingURI = uri
	}

	transcript, err := speech.Listen(ctx, m.opts.Transcriber, audio, mimeType)
	if err != nil {
		reply := m.reply(e, KindTranscriptionFail, ReplyConnectionError)
		switch {
		case errors.Is(err, speech.ErrNothingHeard):
			reply = m.reply(e, KindNothingHeard, ReplyNothingHeard)
		case errors.Is(err, speech.ErrNotUnderstood):
			reply = m.reply(e, KindNotUnderstood, ReplyNotUnderstood)
		default:
			log.Error().Err(err).Msg("Transcription failed")
		}
		metrics.TurnsTotal.WithLabelValues(string(reply.Kind)).Inc()
		reply.RecordingURI = recordingURI
		return reply, nil
	}

	reply := m.utterance(ctx, e, transcript)
	reply.Transcript = transcript
	reply.RecordingURI = recordingURI
	return reply, nil
}

// utterance extracts fields from text and runs the turn. e must be locked.
func (m *Manager) utterance(ctx context.Context, e *entry, text string) Reply {
	log := logger.ForSession(logger.FromContext(ctx), e.session.ID())
	e.lastActive = m.opts.Now()

	text = strings.TrimSpace(text)
	if text == "" {
		metrics.TurnsTotal.WithLabelValues(string(KindNotUnderstood)).Inc()
		return m.reply(e, KindNotUnderstood, ReplyNotUnderstood)
	}

	ex, err := m.opts.Extractor.Extract(ctx, text, e.session.Snapshot())
	if err != nil {
		log.Error().Err(err).Str("utterance", text).Msg("Extraction failed")
		metrics.TurnsTotal.WithLabelValues(string(KindExtractionFailed)).Inc()
		return m.reply(e, KindExtractionFailed, ReplyExtractFailed)
	}

	return m.turn(ctx, e, text, ex)
}

// turn feeds an extraction to the session and acts on the outcome. e must be locked.
func (m *Manager) turn(ctx context.Context, e *entry, text string, ex dialogue.Extraction) Reply {
	log := logger.ForSession(logger.FromContext(ctx), e.session.ID())
	e.lastActive = m.opts.Now()

	outcome := e.session.ProcessTurn(text, ex)
	log.Debug().Int("turn", e.session.Turns()).Str("outcome", string(outcome.Kind)).Msg("Turn processed")

	switch outcome.Kind {
	case dialogue.OutcomeCancelled:
		metrics.TurnsTotal.WithLabelValues(string(KindCancelled)).Inc()
		return m.reply(e, KindCancelled, ReplyCancelled)

	case dialogue.OutcomePrompt:
		metrics.TurnsTotal.WithLabelValues(string(KindPrompt)).Inc()
		field := string(outcome.Missing)
		if field == "" {
			field = "none"
		}
		metrics.PromptsTotal.WithLabelValues(field).Inc()
		reply := m.reply(e, KindPrompt, outcome.Prompt)
		reply.Missing = outcome.Missing
		return reply
	}

	return m.commit(ctx, e, *outcome.Record, log)
}

// commit appends the finalized expense exactly once and settles the session.
func (m *Manager) commit(ctx context.Context, e *entry, rec domain.FinalizedExpense, log zerolog.Logger) Reply {
	rec.ID = m.opts.NewID()
	rec.Timestamp = m.opts.Now()
	rec.StatusTag = m.opts.StatusTag

	sinkCtx := ctx
	if e.ledgerID != "" {
		sinkCtx = ledger.WithLedgerID(ctx, e.ledgerID)
	}

	if err := m.opts.Sink.Append(sinkCtx, rec); err != nil {
		metrics.LedgerAppends.WithLabelValues("failure").Inc()
		metrics.TurnsTotal.WithLabelValues(string(KindCommitFailed)).Inc()
		log.Error().Err(err).Str("expense_id", rec.ID).Msg("Ledger append failed, keeping collected fields")

		if err := e.session.MarkCommitFailed(); err != nil {
			log.Error().Err(err).Msg("Unexpected session state after failed commit")
		}
		return m.reply(e, KindCommitFailed, "Error saving: "+err.Error())
	}
	metrics.LedgerAppends.WithLabelValues("success").Inc()
	metrics.TurnsTotal.WithLabelValues(string(KindCommitted)).Inc()

	if _, err := e.session.MarkCommitted(); err != nil {
		log.Error().Err(err).Msg("Unexpected session state after commit")
	}

	log.Info().
		Str("expense_id", rec.ID).
		Str("item", rec.Item).
		Str("amount", rec.Amount.StringFixed(2)).
		Str("category", rec.DisplayCategory).
		Msg("Expense committed")

	if m.opts.Publisher != nil {
		job := &jobs.MirrorExpenseJob{LedgerID: e.ledgerID, Expense: rec}
		if err := m.opts.Publisher.PublishMirrorExpense(ctx, job); err != nil {
			log.Warn().Err(err).Str("expense_id", rec.ID).Msg("Failed to enqueue mirror job")
		}
	}

	reply := m.reply(e, KindCommitted, fmt.Sprintf("Saved! %s for %s.", rec.Item, rec.Amount.StringFixed(2)))
	reply.Expense = &rec
	return reply
}

func (m *Manager) reply(e *entry, kind ReplyKind, text string) Reply {
	return Reply{
		SessionID: e.session.ID(),
		Kind:      kind,
		Text:      text,
		State:     e.session.Snapshot(),
	}
}

// lookup returns the session if it exists and belongs to the caller.
func (m *Manager) lookup(ctx context.Context, id string) (*entry, error) {
	m.mu.RLock()
	e, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrSessionNotFound
	}
	if e.owner != "" && OwnerFromContext(ctx) != e.owner {
		return nil, ErrSessionNotFound
	}
	return e, nil
}

// acquire looks the session up and locks it. The caller must unlock e.mu.
func (m *Manager) acquire(ctx context.Context, id string) (*entry, error) {
	e, err := m.lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	e.mu.Lock()
	if e.ended {
		e.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	return e, nil
}
