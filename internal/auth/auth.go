package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	drive "google.golang.org/api/drive/v3"
)

// account is the on-disk record of the signed-in user
type account struct {
	Email       string        `json:"email"`
	DisplayName string        `json:"display_name,omitempty"`
	Token       *oauth2.Token `json:"token"`
}

// TokenFile implements providers.Auth with an OAuth2 token persisted in a JSON file.
// Refreshed tokens are written back so the next run stays signed in.
type TokenFile struct {
	path   string
	config *oauth2.Config
	mu     sync.Mutex
}

// NewTokenFile creates an auth provider. config may be nil, in which case stored tokens
// are used as-is without refresh and Exchange is unavailable.
func NewTokenFile(path string, config *oauth2.Config) *TokenFile {
	return &TokenFile{path: path, config: config}
}

// ConfigFromFile loads an OAuth client from a Google client_secret JSON file
func ConfigFromFile(path string) (*oauth2.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read oauth client file: %w", err)
	}
	config, err := google.ConfigFromJSON(data, drive.DriveFileScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse oauth client file: %w", err)
	}
	return config, nil
}

// CurrentIdentity returns the stored account; any problem reading it means nobody is signed in
func (a *TokenFile) CurrentIdentity(ctx context.Context) (providers.Identity, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	acct, err := a.load()
	if err != nil {
		return providers.Identity{}, fmt.Errorf("%w: %w", providers.ErrAuthenticationRequired, err)
	}
	if acct.Token == nil || (acct.Token.AccessToken == "" && acct.Token.RefreshToken == "") {
		return providers.Identity{}, fmt.Errorf("%w: no token stored", providers.ErrAuthenticationRequired)
	}

	var ts oauth2.TokenSource = oauth2.StaticTokenSource(acct.Token)
	if a.config != nil {
		ts = &persistingSource{
			base:  a.config.TokenSource(ctx, acct.Token),
			save:  a.saveToken,
			token: acct.Token,
		}
	}

	return providers.Identity{
		Email:       acct.Email,
		DisplayName: acct.DisplayName,
		TokenSource: ts,
	}, nil
}

// SignOut forgets the stored account. Signing out twice is not an error.
func (a *TokenFile) SignOut(_ context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := os.Remove(a.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	slog.Info("Signed out", "token_file", a.path)
	return nil
}

// AuthCodeURL returns the consent URL the user opens to obtain a code
func (a *TokenFile) AuthCodeURL(state string) (string, error) {
	if a.config == nil {
		return "", errors.New("no oauth client configured")
	}
	return a.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce), nil
}

// Exchange trades an authorization code for a token
func (a *TokenFile) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if a.config == nil {
		return nil, errors.New("no oauth client configured")
	}
	token, err := a.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

// SignIn stores the account so later runs resolve it as the current identity
func (a *TokenFile) SignIn(email, displayName string, token *oauth2.Token) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.save(account{Email: email, DisplayName: displayName, Token: token})
}

func (a *TokenFile) saveToken(token *oauth2.Token) {
	a.mu.Lock()
	defer a.mu.Unlock()
	acct, err := a.load()
	if err != nil {
		// signed out while a refresh was in flight
		return
	}
	acct.Token = token
	if err := a.save(acct); err != nil {
		slog.Warn("Unable to persist refreshed token", "error", err)
	}
}

func (a *TokenFile) load() (account, error) {
	var acct account
	data, err := os.ReadFile(a.path)
	if err != nil {
		return acct, fmt.Errorf("failed to read token file: %w", err)
	}
	if err := json.Unmarshal(data, &acct); err != nil {
		return acct, fmt.Errorf("failed to parse token file: %w", err)
	}
	return acct, nil
}

func (a *TokenFile) save(acct account) error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}
	data, err := json.MarshalIndent(acct, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(a.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// persistingSource writes refreshed tokens back to the token file
type persistingSource struct {
	base  oauth2.TokenSource
	save  func(*oauth2.Token)
	mu    sync.Mutex
	token *oauth2.Token
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.token == nil || token.AccessToken != s.token.AccessToken {
		s.token = token
		s.save(token)
	}
	return token, nil
}
