package secrets

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/zalando/go-keyring"

	"jobwatch-engine/internal/config"
)

const (
	// “Service” groups the app’s secrets in the OS keychain.
	KeyringService = "jobwatch"

	TokenEnv = "JOBWATCH_FEED_TOKEN"
)

var ErrTokenNotFound = errors.New("feed token not found (set it in keychain or via " + TokenEnv + ")")

// FeedToken returns the optional bearer token for the feed API, looking in
// the keyring first and the environment second.
func FeedToken(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) != "" {
		tok, err := keyring.Get(KeyringService, keyringAccount)
		if err == nil && strings.TrimSpace(tok) != "" {
			return tok, nil
		}
	}
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		return tok, nil
	}
	return "", ErrTokenNotFound
}

func SetFeedToken(keyringAccount string, token string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(token) == "" {
		return errors.New("token is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, token)
}

func DeleteFeedToken(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if err := keyring.Delete(KeyringService, keyringAccount); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrTokenNotFound
		}
		return err
	}
	return nil
}

// FeedKeyringAccount names the keychain entry for the configured feed. An
// explicit feed.keyring_account wins.
func FeedKeyringAccount(cfg config.Config) string {
	if acct := strings.TrimSpace(cfg.Feed.KeyringAccount); acct != "" {
		return acct
	}
	host := cfg.Feed.BaseURL
	if u, err := url.Parse(cfg.Feed.BaseURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("jobwatch:feed:%s@%s", cfg.Feed.Domain, host)
}
