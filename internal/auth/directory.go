// Package auth authenticates users against a Firebase Realtime Database user
// directory and issues the bearer tokens the API accepts.
package auth

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// StatusActive is the only account status allowed to log in.
const StatusActive = "ACTIVE"

var (
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrAccountBlocked     = errors.New("account is not active")
	ErrUserNotFound       = errors.New("user not found")
)

// Account is an authenticated user.
type Account struct {
	Username string `json:"username"`
	Status   string `json:"status"`
	// LedgerID is the spreadsheet the user's expenses go to; empty until provisioned.
	LedgerID string `json:"ledger_id,omitempty"`
}

// userRecord is the JSON stored under users/<username>.
type userRecord struct {
	Password     string `json:"password,omitempty"`
	PasswordHash string `json:"password_hash,omitempty"`
	Status       string `json:"status"`
	LedgerID     string `json:"finance_sheet_id,omitempty"`
}

// AccountDirectory looks up and updates user accounts.
type AccountDirectory interface {
	Authenticate(ctx context.Context, username, password string) (Account, error)
	RegisterLedger(ctx context.Context, username, ledgerID string) error
}

// Directory is the Firebase Realtime Database REST implementation of AccountDirectory.
type Directory struct {
	baseURL string
	http    *http.Client
	log     zerolog.Logger
}

// NewDirectory creates a directory rooted at the database URL, e.g.
// https://project.firebaseio.com. httpClient may be nil.
func NewDirectory(baseURL string, httpClient *http.Client, log zerolog.Logger) *Directory {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Directory{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		log:     log,
	}
}

// Authenticate checks the password and the account status.
func (d *Directory) Authenticate(ctx context.Context, username, password string) (Account, error) {
	endpoint, err := d.userURL(username)
	if err != nil {
		return Account{}, ErrInvalidCredentials
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Account{}, fmt.Errorf("Authenticate: building request: %w", err)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return Account{}, fmt.Errorf("Authenticate: fetching user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Account{}, fmt.Errorf("Authenticate: user directory returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Account{}, fmt.Errorf("Authenticate: reading response: %w", err)
	}

	// A missing key comes back as the literal null.
	var rec *userRecord
	if err := json.Unmarshal(body, &rec); err != nil {
		return Account{}, fmt.Errorf("Authenticate: decoding user: %w", err)
	}
	if rec == nil {
		return Account{}, ErrUserNotFound
	}

	if !rec.passwordMatches(password) {
		d.log.Info().Str("username", username).Msg("Login rejected: wrong password")
		return Account{}, ErrInvalidCredentials
	}

	status := strings.ToUpper(strings.TrimSpace(rec.Status))
	if status != StatusActive {
		d.log.Info().Str("username", username).Str("status", status).Msg("Login rejected: account not active")
		return Account{}, fmt.Errorf("%w (status: %s)", ErrAccountBlocked, status)
	}

	return Account{Username: username, Status: status, LedgerID: rec.LedgerID}, nil
}

// RegisterLedger stores the ledger ID on the user's profile.
func (d *Directory) RegisterLedger(ctx context.Context, username, ledgerID string) error {
	endpoint, err := d.userURL(username)
	if err != nil {
		return fmt.Errorf("RegisterLedger: %w", err)
	}

	payload, err := json.Marshal(map[string]string{"finance_sheet_id": ledgerID})
	if err != nil {
		return fmt.Errorf("RegisterLedger: encoding payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("RegisterLedger: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("RegisterLedger: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("RegisterLedger: user directory returned %s", resp.Status)
	}

	d.log.Info().Str("username", username).Str("ledger_id", ledgerID).Msg("Ledger registered on user profile")
	return nil
}

// userURL builds <base>/users/<username>.json. Usernames containing characters
// that are not valid in database keys are rejected.
func (d *Directory) userURL(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" || strings.ContainsAny(username, ".#$[]/") {
		return "", fmt.Errorf("invalid username %q", username)
	}
	return d.baseURL + "/users/" + url.PathEscape(username) + ".json", nil
}

func (r *userRecord) passwordMatches(password string) bool {
	if r.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(r.PasswordHash), []byte(password)) == nil
	}
	if r.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(r.Password), []byte(password)) == 1
}

// HashPassword returns the bcrypt hash stored as password_hash.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("HashPassword: %w", err)
	}
	return string(hash), nil
}

// Ensure Directory implements AccountDirectory.
var _ AccountDirectory = (*Directory)(nil)
