package xconf

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/knadh/koanf/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "engine.yaml", `
recovery:
  failure_threshold: 8
  strategies: [retry, fallback]
`)

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, l.Format())
	assert.Equal(t, path, l.Path())
	assert.Equal(t, 8, l.Koanf().Int("recovery.failure_threshold"))
	assert.Equal(t, []string{"retry", "fallback"}, l.Koanf().Strings("recovery.strategies"))
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "engine.json", `{"recovery": {"max_retries": 3}}`)

	l, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, FormatJSON, l.Format())
	assert.Equal(t, 3, l.Koanf().Int("recovery.max_retries"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("")
	assert.ErrorIs(t, err, ErrEmptyPath)

	_, err = Load("engine.toml")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, ErrLoadFailed)

	path := writeFile(t, "broken.yaml", "recovery: [unclosed")
	_, err = Load(path)
	assert.ErrorIs(t, err, ErrParseFailed)
}

func TestLoadBytes(t *testing.T) {
	l, err := LoadBytes([]byte(`{"probe_interval": "30s"}`), FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, "30s", l.Koanf().String("probe_interval"))
	assert.Empty(t, l.Path())

	assert.ErrorIs(t, l.Reload(), ErrBytesSource)

	_, err = LoadBytes([]byte("{}"), Format("toml"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestLoadBytes_EmptyDataKeepsDefaults(t *testing.T) {
	l, err := LoadBytes(nil, FormatYAML, WithDefaults(map[string]any{
		"recovery.failure_threshold": 5,
	}))
	require.NoError(t, err)
	assert.Equal(t, 5, l.Koanf().Int("recovery.failure_threshold"))
}

func TestLoad_DefaultsAreOverridden(t *testing.T) {
	path := writeFile(t, "engine.yaml", "recovery:\n  failure_threshold: 9\n")

	l, err := Load(path, WithDefaults(map[string]any{
		"recovery.failure_threshold": 5,
		"recovery.max_retries":       3,
	}))
	require.NoError(t, err)
	assert.Equal(t, 9, l.Koanf().Int("recovery.failure_threshold"))
	assert.Equal(t, 3, l.Koanf().Int("recovery.max_retries"))
}

func TestUnmarshal(t *testing.T) {
	path := writeFile(t, "engine.yaml", `
recovery:
  failure_threshold: 8
  strategies: [retry, fallback]
`)
	l, err := Load(path)
	require.NoError(t, err)

	var cfg struct {
		FailureThreshold int      `koanf:"failure_threshold"`
		Strategies       []string `koanf:"strategies"`
	}
	require.NoError(t, l.Unmarshal("recovery", &cfg))
	assert.Equal(t, 8, cfg.FailureThreshold)
	assert.Equal(t, []string{"retry", "fallback"}, cfg.Strategies)
}

func TestValidator_RejectsInitialLoad(t *testing.T) {
	path := writeFile(t, "engine.yaml", "recovery:\n  failure_threshold: 0\n")

	_, err := Load(path, WithValidator(func(k *koanf.Koanf) error {
		if k.Int("recovery.failure_threshold") < 1 {
			return errors.New("failure_threshold must be positive")
		}
		return nil
	}))
	assert.ErrorIs(t, err, ErrValidateFailed)
}

func TestReload_KeepsSnapshotOnFailure(t *testing.T) {
	path := writeFile(t, "engine.yaml", "recovery:\n  failure_threshold: 5\n")

	l, err := Load(path, WithValidator(func(k *koanf.Koanf) error {
		if k.Int("recovery.failure_threshold") < 1 {
			return errors.New("failure_threshold must be positive")
		}
		return nil
	}))
	require.NoError(t, err)

	// 非法的新内容被拒绝,旧快照保持有效
	require.NoError(t, os.WriteFile(path, []byte("recovery:\n  failure_threshold: -1\n"), 0o600))
	assert.ErrorIs(t, l.Reload(), ErrValidateFailed)
	assert.Equal(t, 5, l.Koanf().Int("recovery.failure_threshold"))

	// 合法内容正常生效
	require.NoError(t, os.WriteFile(path, []byte("recovery:\n  failure_threshold: 7\n"), 0o600))
	require.NoError(t, l.Reload())
	assert.Equal(t, 7, l.Koanf().Int("recovery.failure_threshold"))
}

func TestReload_OldSnapshotStaysUsable(t *testing.T) {
	path := writeFile(t, "engine.yaml", "a: 1\n")
	l, err := Load(path)
	require.NoError(t, err)

	old := l.Koanf()
	require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o600))
	require.NoError(t, l.Reload())

	assert.Equal(t, 1, old.Int("a"))
	assert.Equal(t, 2, l.Koanf().Int("a"))
}
