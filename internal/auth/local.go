package auth

import (
	"context"
	"log/slog"
	"os/user"

	"github.com/lehigh-university-libraries/scanfolders/internal/providers"
)

// Local is the identity used with the filesystem backend: the operating system user,
// always signed in.
type Local struct{}

func (Local) CurrentIdentity(context.Context) (providers.Identity, error) {
	name := "local"
	if u, err := user.Current(); err == nil && u.Username != "" {
		name = u.Username
	}
	return providers.Identity{Email: name, DisplayName: name}, nil
}

func (Local) SignOut(context.Context) error {
	slog.Debug("Local identity cannot sign out")
	return nil
}
