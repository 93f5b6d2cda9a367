package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// LedgerProvisioner creates a new ledger for a user who has none yet.
type LedgerProvisioner interface {
	CreateLedger(ctx context.Context, title string) (string, error)
}

// Login is the result of a successful login.
type Login struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
	Account   Account   `json:"account"`
}

// Service logs users in and makes sure each one has a ledger.
type Service struct {
	dir         AccountDirectory
	tokens      *Tokens
	provisioner LedgerProvisioner
	log         zerolog.Logger
}

// NewService creates a login service. provisioner may be nil, in which case
// accounts without a ledger log in with an empty ledger ID.
func NewService(dir AccountDirectory, tokens *Tokens, provisioner LedgerProvisioner, log zerolog.Logger) *Service {
	return &Service{dir: dir, tokens: tokens, provisioner: provisioner, log: log}
}

// Login authenticates the user, provisions a ledger on first login and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (Login, error) {
	acc, err := s.dir.Authenticate(ctx, username, password)
	if err != nil {
		return Login{}, err
	}

	if acc.LedgerID == "" && s.provisioner != nil {
		ledgerID, err := s.provisioner.CreateLedger(ctx, "Expenses - "+acc.Username)
		if err != nil {
			return Login{}, fmt.Errorf("Login: creating ledger: %w", err)
		}
		if err := s.dir.RegisterLedger(ctx, acc.Username, ledgerID); err != nil {
			// The ledger exists but is not linked; the next login creates another one.
			s.log.Error().Err(err).Str("username", acc.Username).Str("ledger_id", ledgerID).Msg("Failed to register ledger")
		}
		acc.LedgerID = ledgerID
	}

	token, expiresAt, err := s.tokens.Issue(acc)
	if err != nil {
		return Login{}, fmt.Errorf("Login: %w", err)
	}

	s.log.Info().Str("username", acc.Username).Str("ledger_id", acc.LedgerID).Msg("User logged in")
	return Login{Token: token, ExpiresAt: expiresAt, Account: acc}, nil
}

// Validate delegates to the token issuer.
func (s *Service) Validate(token string) (Claims, error) {
	return s.tokens.Validate(token)
}
