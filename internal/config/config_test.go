package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadAppliesPortAndTTLDefaults(t *testing.T) {
	path := writeTempConfig(t, `
rooms:
  - platform: douyu
    room_id: "74960"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, defaultProxyPort, cfg.ProxyPort)
	assert.Equal(t, defaultImagePort, cfg.ImagePort)
	assert.Equal(t, defaultDouyinSignTTL, cfg.DouyinSignTTL)
	require.Len(t, cfg.Rooms, 1)
	assert.Equal(t, "原画", cfg.Rooms[0].Quality)
}

func TestLoadRespectsExplicitOverrides(t *testing.T) {
	path := writeTempConfig(t, `
proxy_port: 9001
image_port: 9002
debug: true
rooms:
  - platform: huya
    room_id: "880201"
    quality: 高清
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.ProxyPort)
	assert.Equal(t, 9002, cfg.ImagePort)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "高清", cfg.Rooms[0].Quality)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestFindRoom(t *testing.T) {
	path := writeTempConfig(t, `
rooms:
  - platform: douyu
    room_id: "74960"
  - platform: huya
    room_id: "880201"
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	room := cfg.FindRoom("huya", "880201")
	require.NotNil(t, room)
	assert.Equal(t, "huya", room.Platform)

	assert.Nil(t, cfg.FindRoom("huya", "nonexistent"))
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.yaml")

	cfg := &Config{
		Rooms:         []RoomConfig{{Platform: "douyu", RoomID: "74960", Quality: "原画"}},
		ProxyPort:     34719,
		ImagePort:     34721,
		DouyinSignTTL: 30,
	}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.Rooms[0].RoomID, loaded.Rooms[0].RoomID)
}
