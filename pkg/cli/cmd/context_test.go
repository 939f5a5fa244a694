package cmd

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextConfigManagement(t *testing.T) {
	originalCfgFile := cfgFile
	cfgFile = filepath.Join(t.TempDir(), "nested", "config.yaml")
	t.Cleanup(func() { cfgFile = originalCfgFile })

	t.Run("Missing file", func(t *testing.T) {
		config, err := loadContextConfig()
		require.NoError(t, err)
		assert.Equal(t, "default", config.CurrentContext)
		assert.Empty(t, config.Contexts)
	})

	t.Run("Save and reload", func(t *testing.T) {
		config, err := loadContextConfig()
		require.NoError(t, err)
		config.Contexts["prod"] = Context{Server: "https://relay.example", Token: "tok-123456789"}
		config.CurrentContext = "prod"
		require.NoError(t, saveContextConfig(config))

		loaded, err := loadContextConfig()
		require.NoError(t, err)
		name, current := loaded.Current()
		assert.Equal(t, "prod", name)
		assert.Equal(t, "https://relay.example", current.Server)
		assert.Equal(t, "tok-123456789", current.Token)
	})
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "<none>", maskToken(""))
	assert.Equal(t, "********", maskToken("short"))
	assert.Equal(t, "abcdefgh...", maskToken("abcdefghijkl"))
}

func TestDecodeDrafts(t *testing.T) {
	drafts, err := decodeDrafts(strings.NewReader(`
name: a
backendUrl: https://x.example
---
- name: b
  subscribeUrls: [u1, u2]
- name: c
  proxyTag: relay
---
`))
	require.NoError(t, err)
	require.Len(t, drafts, 3)
	assert.Equal(t, "a", drafts[0].Name)
	assert.Equal(t, []string{"u1", "u2"}, drafts[1].SubscribeURLs)
	assert.Equal(t, "relay", drafts[2].ProxyTag)

	_, err = decodeDrafts(strings.NewReader("just a string\n"))
	assert.Error(t, err)

	drafts, err = decodeDrafts(strings.NewReader("name: a\n---\n---\nname: b\n---\n"))
	require.NoError(t, err)
	require.Len(t, drafts, 2)
	assert.Equal(t, "b", drafts[1].Name)
}

func TestFormatAge(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	timeNow = func() time.Time { return now }
	t.Cleanup(func() { timeNow = time.Now })

	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "Just now"},
		{5 * time.Minute, "5m"},
		{3 * time.Hour, "3h"},
		{4 * 24 * time.Hour, "4d"},
		{60 * 24 * time.Hour, "2mo"},
		{800 * 24 * time.Hour, "2y"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatAge(now.Add(-tt.ago)))
	}
	assert.Equal(t, "Unknown", formatAge(time.Time{}))
}
