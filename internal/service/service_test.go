package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/christian-lee/streamcast/internal/model"
	"github.com/christian-lee/streamcast/internal/resolver"
	"github.com/christian-lee/streamcast/internal/session"
)

type fakeResolver struct {
	info model.LiveStreamInfo
	err  error
}

func (f fakeResolver) Resolve(ctx context.Context, req model.Request) (model.LiveStreamInfo, error) {
	return f.info, f.err
}

func newTestService(t *testing.T, platform model.Platform, r resolver.Resolver) (*Service, *session.Store) {
	t.Helper()
	store := session.New()
	svc := New(map[model.Platform]resolver.Resolver{platform: r}, store, func(platform model.Platform, roomID string) string {
		return "http://127.0.0.1:34719/live/" + string(platform) + "/" + roomID + ".flv"
	})
	return svc, store
}

func TestGetLiveStreamEmptyRoomID(t *testing.T) {
	svc, _ := newTestService(t, model.Douyu, fakeResolver{})
	resp := svc.GetLiveStream(context.Background(), model.Request{Platform: model.Douyu, RoomID: "   "})
	assert.Equal(t, model.RespError, resp.Status)
	assert.Equal(t, "room_id cannot be empty", resp.Error)
}

func TestGetLiveStreamUnsupportedPlatform(t *testing.T) {
	svc, _ := newTestService(t, model.Douyu, fakeResolver{})
	resp := svc.GetLiveStream(context.Background(), model.Request{Platform: model.Bilibili, RoomID: "123"})
	assert.Equal(t, model.RespError, resp.Status)
}

func TestGetLiveStreamResolverErrorClassifiesOffline(t *testing.T) {
	svc, _ := newTestService(t, model.Douyu, fakeResolver{err: errors.New("房间未开播")})
	resp := svc.GetLiveStream(context.Background(), model.Request{Platform: model.Douyu, RoomID: "74960"})
	assert.Equal(t, model.RespOffline, resp.Status)
	assert.Empty(t, resp.Error)
}

func TestGetLiveStreamInfoErrorMessageClassifiesApi(t *testing.T) {
	svc, _ := newTestService(t, model.Douyu, fakeResolver{info: model.LiveStreamInfo{ErrorMessage: "unexpected payload"}})
	resp := svc.GetLiveStream(context.Background(), model.Request{Platform: model.Douyu, RoomID: "74960"})
	assert.Equal(t, model.RespError, resp.Status)
	assert.Equal(t, "unexpected payload", resp.Error)
}

func TestGetLiveStreamOfflineStatus(t *testing.T) {
	svc, _ := newTestService(t, model.Douyu, fakeResolver{info: model.LiveStreamInfo{Status: model.StatusOffline, Title: "room title"}})
	resp := svc.GetLiveStream(context.Background(), model.Request{Platform: model.Douyu, RoomID: "74960"})
	assert.Equal(t, model.RespOffline, resp.Status)
	assert.Equal(t, "room title", resp.Room.Title)
	assert.Nil(t, resp.Playback)
}

func TestGetLiveStreamMetaModeSkipsPlayback(t *testing.T) {
	svc, _ := newTestService(t, model.Douyu, fakeResolver{info: model.LiveStreamInfo{
		Status:    model.StatusLive,
		StreamURL: "https://cdn.example.com/live.flv",
	}})
	resp := svc.GetLiveStream(context.Background(), model.Request{Platform: model.Douyu, RoomID: "74960", Mode: model.ModeMeta})
	assert.Equal(t, model.RespLive, resp.Status)
	assert.Nil(t, resp.Playback)
}

func TestGetLiveStreamPlaybackRegistersSessionAndBuildsProxyURL(t *testing.T) {
	svc, store := newTestService(t, model.Douyu, fakeResolver{info: model.LiveStreamInfo{
		Status:    model.StatusLive,
		StreamURL: "https://cdn.example.com/live.flv?sign=abc",
	}})
	resp := svc.GetLiveStream(context.Background(), model.Request{Platform: model.Douyu, RoomID: "74960"})

	require.Equal(t, model.RespLive, resp.Status)
	require.NotNil(t, resp.Playback)
	assert.Equal(t, "http://127.0.0.1:34719/live/douyu/74960.flv", resp.Playback.URL)
	assert.Equal(t, model.StreamFLV, resp.Playback.StreamType)
	assert.Empty(t, resp.Playback.UpstreamURL, "upstream url only surfaces in debug mode")

	stored, ok := store.Get(model.SessionKey{Platform: model.Douyu, RoomID: "74960"})
	require.True(t, ok)
	assert.Equal(t, "https://cdn.example.com/live.flv?sign=abc", stored)
}

func TestGetLiveStreamDebugSurfacesUpstreamAndVariants(t *testing.T) {
	variants := make([]model.StreamVariant, 25)
	for i := range variants {
		variants[i] = model.StreamVariant{URL: "https://cdn.example.com/v"}
	}
	svc, _ := newTestService(t, model.Douyu, fakeResolver{info: model.LiveStreamInfo{
		Status:           model.StatusLive,
		StreamURL:        "https://cdn.example.com/live.flv",
		UpstreamURL:      "https://cdn.example.com/live.flv",
		AvailableStreams: variants,
	}})
	resp := svc.GetLiveStream(context.Background(), model.Request{Platform: model.Douyu, RoomID: "74960", Debug: true})

	require.NotNil(t, resp.Playback)
	assert.NotEmpty(t, resp.Playback.UpstreamURL)
	assert.Len(t, resp.Playback.Variants, maxDebugVariants)
}

func TestGetLiveStreamEmptyStreamURLIsOffline(t *testing.T) {
	svc, _ := newTestService(t, model.Douyu, fakeResolver{info: model.LiveStreamInfo{Status: model.StatusLive, StreamURL: ""}})
	resp := svc.GetLiveStream(context.Background(), model.Request{Platform: model.Douyu, RoomID: "74960"})
	assert.Equal(t, model.RespOffline, resp.Status)
}
