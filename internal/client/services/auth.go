// Package services contains application services for the Waffle client.
// This file defines the authentication service: unlocking the bootstrap
// blob with the group passphrase and remembering who the user is.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dmitrijs2005/waffle/internal/client/repositories/metadata"
	"github.com/dmitrijs2005/waffle/internal/common"
	"github.com/dmitrijs2005/waffle/internal/cryptox"
	"github.com/dmitrijs2005/waffle/internal/logging"
)

// MaxFirstNameLength limits the first-name part of a username.
const MaxFirstNameLength = 20

// Credentials address the group's store.
type Credentials struct {
	StoreID string
	Token   string
}

// AuthService defines authentication operations for the CLI.
//
// Contract:
//   - Unlock: open the bootstrap blob with passphrase and remember it.
//   - Resume: reopen the blob with a remembered passphrase, if any.
//   - SetUsername / Username: persist and read the user's display name.
//   - Logout: forget everything cached locally.
type AuthService interface {
	Unlock(ctx context.Context, passphrase string) (*Credentials, error)
	Resume(ctx context.Context) (*Credentials, error)
	SetUsername(ctx context.Context, first, lastInitial string) (string, error)
	Username(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
}

type authService struct {
	bootstrap string
	meta      metadata.Repository
	log       logging.Logger
}

// NewAuthService constructs an AuthService for the given sealed blob.
func NewAuthService(bootstrap string, meta metadata.Repository, log logging.Logger) AuthService {
	if log == nil {
		log = logging.Nop{}
	}
	return &authService{bootstrap: bootstrap, meta: meta, log: log.With("component", "auth")}
}

func (a *authService) open(passphrase string) (*Credentials, error) {
	if a.bootstrap == "" {
		return nil, fmt.Errorf("%w: no bootstrap configured", common.ErrMalformedBootstrap)
	}
	id, token, err := cryptox.OpenBootstrap(a.bootstrap, passphrase)
	if err != nil {
		return nil, err
	}
	return &Credentials{StoreID: id, Token: token}, nil
}

// Unlock opens the bootstrap and, on success, caches the passphrase.
func (a *authService) Unlock(ctx context.Context, passphrase string) (*Credentials, error) {
	passphrase = strings.TrimSpace(passphrase)
	if passphrase == "" {
		return nil, fmt.Errorf("%w: empty passphrase", common.ErrValidation)
	}

	creds, err := a.open(passphrase)
	if err != nil {
		a.log.Warn(ctx, "unlock failed", "err", err)
		return nil, err
	}

	if err := a.meta.Set(ctx, metadata.KeyPassphrase, []byte(passphrase)); err != nil {
		return nil, fmt.Errorf("remember passphrase: %w", err)
	}
	return creds, nil
}

// Resume returns common.ErrNotFound when nothing is cached. A cached
// passphrase that no longer opens the blob is forgotten.
func (a *authService) Resume(ctx context.Context) (*Credentials, error) {
	pass, err := a.meta.Get(ctx, metadata.KeyPassphrase)
	if err != nil {
		return nil, err
	}
	if pass == nil {
		return nil, fmt.Errorf("passphrase: %w", common.ErrNotFound)
	}
	defer common.WipeByteArray(pass)

	creds, err := a.open(string(pass))
	if err != nil {
		if errors.Is(err, common.ErrAuthenticationFailed) {
			_ = a.meta.Delete(ctx, metadata.KeyPassphrase)
		}
		return nil, err
	}
	return creds, nil
}

func (a *authService) SetUsername(ctx context.Context, first, lastInitial string) (string, error) {
	name, err := MakeUsername(first, lastInitial)
	if err != nil {
		return "", err
	}
	if err := a.meta.Set(ctx, metadata.KeyUsername, []byte(name)); err != nil {
		return "", fmt.Errorf("remember username: %w", err)
	}
	return name, nil
}

// Username returns common.ErrNotFound when no name has been chosen yet.
func (a *authService) Username(ctx context.Context) (string, error) {
	v, err := a.meta.Get(ctx, metadata.KeyUsername)
	if err != nil {
		return "", err
	}
	if v == nil {
		return "", fmt.Errorf("username: %w", common.ErrNotFound)
	}
	return string(v), nil
}

func (a *authService) Logout(ctx context.Context) error {
	return a.meta.Clear(ctx)
}

// MakeUsername builds "First L" from a first name and a one-letter initial.
func MakeUsername(first, lastInitial string) (string, error) {
	first = strings.TrimSpace(first)
	last := strings.ToUpper(strings.TrimSpace(lastInitial))

	if first == "" {
		return "", fmt.Errorf("%w: please enter your first name", common.ErrValidation)
	}
	if utf8.RuneCountInString(first) > MaxFirstNameLength {
		return "", fmt.Errorf("%w: first name is longer than %d characters", common.ErrValidation, MaxFirstNameLength)
	}
	if len(last) != 1 || last[0] < 'A' || last[0] > 'Z' {
		return "", fmt.Errorf("%w: please enter a single letter for your last initial", common.ErrValidation)
	}
	if strings.ContainsFunc(first, func(r rune) bool { return r == '/' || unicode.IsControl(r) }) {
		return "", fmt.Errorf("%w: first name contains unsupported characters", common.ErrValidation)
	}
	return first + " " + last, nil
}
