package sync

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/creatorpulse/creatorpulse/internal/models"
)

// EnvCredentials resolves platform access tokens from environment variables
// named by the account's credential reference. Token acquisition and refresh
// happen outside this service.
type EnvCredentials struct{}

// AccessToken implements CredentialStore
func (EnvCredentials) AccessToken(_ context.Context, account *models.Account) (string, error) {
	if account.CredentialRef == "" {
		return "", fmt.Errorf("account %d has no credential reference", account.ID)
	}
	if !account.CredentialExpiresAt.IsZero() && account.CredentialExpiresAt.Before(time.Now()) {
		return "", fmt.Errorf("credential for account %d expired at %s",
			account.ID, account.CredentialExpiresAt.Format(time.RFC3339))
	}

	token := os.Getenv(account.CredentialRef)
	if token == "" {
		return "", fmt.Errorf("credential %q is not set", account.CredentialRef)
	}
	return token, nil
}
