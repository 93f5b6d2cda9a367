package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
)

func TestTokens_IssueAndValidate(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)

	signed, expiresAt, err := tokens.Issue(Account{Username: "alice", LedgerID: "sheet-1"})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	claims, err := tokens.Validate(signed)
	if err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	if claims.Username != "alice" || claims.LedgerID != "sheet-1" {
		t.Errorf("unexpected claims: %+v", claims)
	}
	if claims.ExpiresAt.Unix() != expiresAt.Unix() {
		t.Errorf("ExpiresAt = %v, want %v", claims.ExpiresAt, expiresAt)
	}

	if _, _, err := tokens.Issue(Account{}); err == nil {
		t.Error("expected error for empty username")
	}
}

func TestTokens_Rejects(t *testing.T) {
	tokens := NewTokens("secret", time.Hour)
	good, _, _ := tokens.Issue(Account{Username: "alice"})

	expired := NewTokens("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, _, _ := expired.Issue(Account{Username: "alice"})

	forged, _, _ := NewTokens("other", time.Hour).Issue(Account{Username: "alice"})

	noSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("secret"))

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "alice",
	}).SignedString([]byte("secret"))

	tests := map[string]string{
		"expired":        old,
		"wrong secret":   forged,
		"missing sub":    noSub,
		"missing exp":    noExp,
		"garbage":        "not-a-token",
		"truncated good": good[:len(good)-3],
	}
	for name, tok := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := tokens.Validate(tok); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("expected ErrInvalidToken, got %v", err)
			}
		})
	}
}

type fakeDirectory struct {
	account    Account
	err        error
	registered map[string]string
}

func (f *fakeDirectory) Authenticate(ctx context.Context, username, password string) (Account, error) {
	return f.account, f.err
}

func (f *fakeDirectory) RegisterLedger(ctx context.Context, username, ledgerID string) error {
	if f.registered == nil {
		f.registered = make(map[string]string)
	}
	f.registered[username] = ledgerID
	return nil
}

type fakeProvisioner struct{ titles []string }

func (f *fakeProvisioner) CreateLedger(ctx context.Context, title string) (string, error) {
	f.titles = append(f.titles, title)
	return "new-sheet", nil
}

func TestService_LoginProvisionsLedger(t *testing.T) {
	dir := &fakeDirectory{account: Account{Username: "alice", Status: StatusActive}}
	prov := &fakeProvisioner{}
	svc := NewService(dir, NewTokens("secret", time.Hour), prov, zerolog.Nop())

	login, err := svc.Login(context.Background(), "alice", "1234")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if login.Account.LedgerID != "new-sheet" || dir.registered["alice"] != "new-sheet" {
		t.Errorf("ledger not provisioned: %+v, %v", login.Account, dir.registered)
	}
	if len(prov.titles) != 1 {
		t.Errorf("expected one ledger creation, got %v", prov.titles)
	}

	claims, err := svc.Validate(login.Token)
	if err != nil || claims.LedgerID != "new-sheet" {
		t.Errorf("token does not carry the ledger: %+v, %v", claims, err)
	}
}

func TestService_LoginKeepsExistingLedger(t *testing.T) {
	dir := &fakeDirectory{account: Account{Username: "alice", LedgerID: "sheet-1"}}
	prov := &fakeProvisioner{}
	svc := NewService(dir, NewTokens("secret", time.Hour), prov, zerolog.Nop())

	if _, err := svc.Login(context.Background(), "alice", "1234"); err != nil {
		t.Fatal(err)
	}
	if len(prov.titles) != 0 || dir.registered != nil {
		t.Error("existing ledger must not be replaced")
	}
}

func TestService_LoginPropagatesDirectoryErrors(t *testing.T) {
	dir := &fakeDirectory{err: ErrAccountBlocked}
	svc := NewService(dir, NewTokens("secret", time.Hour), nil, zerolog.Nop())

	if _, err := svc.Login(context.Background(), "alice", "1234"); !errors.Is(err, ErrAccountBlocked) {
		t.Errorf("expected ErrAccountBlocked, got %v", err)
	}
}
