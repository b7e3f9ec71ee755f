package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8300,
		"database": {"host": "localhost", "db_name": "critiq"},
		"ai": {"provider": "openai", "embed_model": "text-embedding-3-small"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Cache.ExactStore)
	require.Equal(t, 0.95, cfg.Cache.SimilarityThreshold)
	require.Equal(t, 48, cfg.Cache.FeedbackTTLHours)
	require.Equal(t, 168, cfg.Cache.EmbeddingTTLHours)
	require.Equal(t, 100000, cfg.Cache.MaxItems)
	require.Equal(t, 3, cfg.Cache.TopK)
	require.Equal(t, "30 3 * * *", cfg.Schedule.CleanupCron)
}

func TestLoad_RejectsEmbeddingTTLShorterThanFeedbackTTL(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8300,
		"database": {"dsn": "postgres://localhost/critiq"},
		"ai": {"provider": "openai", "embed_model": "text-embedding-3-small"},
		"cache": {"feedback_ttl_hours": 48, "embedding_ttl_hours": 24}
	}`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_RedisStoreRequiresAddr(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8300,
		"database": {"dsn": "postgres://localhost/critiq"},
		"ai": {"provider": "openai", "embed_model": "text-embedding-3-small"},
		"cache": {"exact_store": "redis"}
	}`)
	_, err := Load(path)
	require.Error(t, err)

	path = writeConfig(t, `{
		"port": 8300,
		"database": {"dsn": "postgres://localhost/critiq"},
		"redis": {"addr": "localhost:6379"},
		"ai": {"provider": "openai", "embed_model": "text-embedding-3-small"},
		"cache": {"exact_store": "redis"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "redis", cfg.Cache.ExactStore)
}

func TestLoad_RequiresProviderAndEmbedModel(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8300,
		"database": {"dsn": "postgres://localhost/critiq"},
		"ai": {"provider": "openai"}
	}`)
	_, err := Load(path)
	require.Error(t, err)
}
