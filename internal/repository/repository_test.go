package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xiaomo-123/gemini-api-service/internal/models"
)

func TestMailStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewMailStore(filepath.Join(dir, "mail.yaml"))
	ctx := context.Background()

	id := int64(42)
	creds := &models.MailCredentials{
		BaseURL:  "https://mail.example.com",
		Email:    "parent@example.com",
		Password: "secret",
		Domain:   "example.com",
		Parent:   &models.MailAccount{Email: "parent@example.com", AccountID: &id},
		Children: []models.MailAccount{
			{Email: "child1@example.com"},
			{Email: "child2@example.com"},
		},
	}

	require.NoError(t, store.Save(ctx, creds))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, creds, loaded)
}

func TestMailStoreLoadMissingFileReturnsEmpty(t *testing.T) {
	store := NewMailStore(filepath.Join(t.TempDir(), "mail.yaml"))

	creds, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, &models.MailCredentials{}, creds)
}

func TestGeminiStoreRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store := NewGeminiStore(filepath.Join(dir, "gemini.yaml"))
	ctx := context.Background()

	cfg := &models.GeminiConfig{
		PoolURL:       "https://pool.example.com",
		AdminPassword: "hunter2",
		Accounts: []models.GeminiAccount{
			{
				Email: "child1@example.com",
				Tokens: &models.SessionTokens{
					Csesidx:    "idx",
					HostCOses:  "host",
					SecureCSes: "ses",
					TeamID:     "team-1",
				},
			},
			{Email: "child2@example.com", SkipReason: "banned"},
		},
	}

	require.NoError(t, store.Save(ctx, cfg))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
	assert.True(t, loaded.Accounts[0].Syncable())
	assert.False(t, loaded.Accounts[1].Syncable())
}

func TestProxyStoreLoadMissingFileFails(t *testing.T) {
	store := NewProxyStore(filepath.Join(t.TempDir(), "proxy.yaml"))

	_, err := store.Load(context.Background())
	assert.True(t, os.IsNotExist(err))
}

func TestWriteDocumentReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "proxy.yaml")
	store := NewProxyStore(path)
	ctx := context.Background()

	first := &models.ProxyConfig{Enabled: true, Type: models.ProxyHTTP, URL: "127.0.0.1", Port: 8080}
	require.NoError(t, store.Save(ctx, first))

	second := &models.ProxyConfig{Enabled: false, Type: models.ProxySocks5, URL: "10.0.0.1", Port: 1080}
	require.NoError(t, store.Save(ctx, second))

	loaded, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, second, loaded)

	// no temp files left behind
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
