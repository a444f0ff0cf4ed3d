// Package credential keeps API tokens in the OS keyring so they do not have
// to live in the config file.
package credential

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/99designs/keyring"

	"hotspot/internal/config"
)

const serviceName = "hotspot"

const (
	OpenRouterAPIKey   = "openrouter_api_key"
	GitHubToken        = "github_token"
	TwitterBearerToken = "twitter_bearer_token"
	TelegramBotToken   = "telegram_bot_token"
)

var knownKeys = []string{OpenRouterAPIKey, GitHubToken, TwitterBearerToken, TelegramBotToken}

type Store struct {
	ring keyring.Keyring
}

// Open opens the first available OS keyring backend. fileDir is used by
// the encrypted file fallback.
func Open(fileDir string) (*Store, error) {
	if fileDir == "" {
		fileDir = "~/.config/hotspot/credentials"
	}
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  fileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt("hotspot-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// Get returns "" without error when key is not stored.
func (s *Store) Get(key string) (string, error) {
	item, err := s.ring.Get(key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("getting credential %q: %w", key, err)
	}
	return string(item.Data), nil
}

func (s *Store) Set(key, value string) error {
	if !slices.Contains(knownKeys, key) {
		return fmt.Errorf("unknown credential %q (want one of %s)", key, strings.Join(knownKeys, ", "))
	}
	if err := s.ring.Set(keyring.Item{Key: key, Data: []byte(value)}); err != nil {
		return fmt.Errorf("setting credential %q: %w", key, err)
	}
	return nil
}

// Resolve fills every empty token in cfg from the keyring and returns the
// names it filled.
func (s *Store) Resolve(cfg *config.Config) ([]string, error) {
	targets := []struct {
		key string
		dst *string
	}{
		{OpenRouterAPIKey, &cfg.OpenRouter.APIKey},
		{GitHubToken, &cfg.GitHub.Token},
		{TwitterBearerToken, &cfg.Twitter.BearerToken},
		{TelegramBotToken, &cfg.Telegram.BotToken},
	}
	var filled []string
	for _, t := range targets {
		if *t.dst != "" {
			continue
		}
		v, err := s.Get(t.key)
		if err != nil {
			return filled, err
		}
		if v != "" {
			*t.dst = v
			filled = append(filled, t.key)
		}
	}
	return filled, nil
}

// ParseAssignment splits "name=value".
func ParseAssignment(s string) (string, string, error) {
	key, value, ok := strings.Cut(s, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", errors.New("credential must be name=value")
	}
	return key, strings.TrimSpace(value), nil
}
