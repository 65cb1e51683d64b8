package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/scanfolders/internal/auth"
	"github.com/lehigh-university-libraries/scanfolders/internal/drive"
	"github.com/lehigh-university-libraries/scanfolders/internal/localfs"
	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
)

// globalOptions are the persistent flags shared by every command
type globalOptions struct {
	backend   string
	localRoot string
	verbose   bool
}

// tokenPath is $SCANFOLDERS_TOKEN, falling back to the user config directory
func tokenPath() string {
	if p := os.Getenv("SCANFOLDERS_TOKEN"); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "scanfolders", "token.json")
}

// tokenFile opens the stored Google account. The OAuth client is optional unless a
// token has to be refreshed or a code exchanged.
func tokenFile() (*auth.TokenFile, error) {
	clientJSON := os.Getenv("GOOGLE_OAUTH_CLIENT_JSON")
	if clientJSON == "" {
		return auth.NewTokenFile(tokenPath(), nil), nil
	}
	config, err := auth.ConfigFromFile(clientJSON)
	if err != nil {
		return nil, err
	}
	return auth.NewTokenFile(tokenPath(), config), nil
}

// backendServices returns the auth provider and remote storage for --backend
func (o *globalOptions) backendServices() (providers.Auth, providers.Storage, error) {
	switch o.backend {
	case "drive":
		tokens, err := tokenFile()
		if err != nil {
			return nil, nil, err
		}
		return tokens, drive.New(), nil
	case "local":
		remote, err := localfs.New(o.localRoot)
		if err != nil {
			return nil, nil, err
		}
		return auth.Local{}, remote, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q (use drive or local)", o.backend)
	}
}
