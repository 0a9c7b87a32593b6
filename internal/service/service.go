// Package service implements the unified command (C9): the single entry
// point that drives a platform resolver, classifies failures, registers the
// proxy session, and shapes the externally visible LiveStreamResponse.
package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/christian-lee/streamcast/internal/model"
	"github.com/christian-lee/streamcast/internal/resolver"
	"github.com/christian-lee/streamcast/internal/session"
	"github.com/christian-lee/streamcast/internal/streamerr"
)

const maxDebugVariants = 20

// proxyURLFunc builds the client-facing proxy URL for a resolved session;
// swappable in tests.
type proxyURLFunc func(platform model.Platform, roomID string) string

// Service is the composition root C9 drives: one resolver per platform,
// the shared session store, and the function that turns a stored session
// into a client-facing proxy URL.
type Service struct {
	resolvers map[model.Platform]resolver.Resolver
	store     *session.Store
	proxyURL  proxyURLFunc
}

// New wires a Service from a per-platform resolver map, per spec §6's
// "programmatic RPC surface to a host app" contract.
func New(resolvers map[model.Platform]resolver.Resolver, store *session.Store, proxyURL proxyURLFunc) *Service {
	return &Service{resolvers: resolvers, store: store, proxyURL: proxyURL}
}

// GetLiveStream is get_live_stream_v2's Go counterpart: normalizes the
// empty-room-id edge case, dispatches to the platform resolver, then
// reshapes LiveStreamInfo into the externally visible response.
func (s *Service) GetLiveStream(ctx context.Context, req model.Request) model.LiveStreamResponse {
	roomID := strings.TrimSpace(req.RoomID)
	if roomID == "" {
		return model.LiveStreamResponse{
			Status: model.RespError,
			Room:   model.RoomMeta{RoomID: roomID},
			Error:  "room_id cannot be empty",
		}
	}
	req.RoomID = roomID

	res, ok := s.resolvers[req.Platform]
	if !ok {
		return model.LiveStreamResponse{
			Status: model.RespError,
			Room:   model.RoomMeta{RoomID: roomID},
			Error:  fmt.Sprintf("unsupported platform %q", req.Platform),
		}
	}

	info, err := res.Resolve(ctx, req)
	if err != nil {
		return s.classifyError(roomID, err.Error())
	}
	if info.ErrorMessage != "" {
		return s.classifyError(roomID, info.ErrorMessage)
	}

	meta := model.RoomMeta{
		Title:      info.Title,
		AnchorName: info.AnchorName,
		Avatar:     info.Avatar,
		RoomID:     roomID,
	}

	if info.Status != model.StatusLive {
		return model.LiveStreamResponse{Status: model.RespOffline, Room: meta}
	}

	if req.Mode == model.ModeMeta {
		return model.LiveStreamResponse{Status: model.RespLive, Room: meta}
	}

	if info.StreamURL == "" {
		return model.LiveStreamResponse{Status: model.RespOffline, Room: meta}
	}

	key := model.SessionKey{Platform: req.Platform, RoomID: roomID}
	streamType := resolver.InferStreamType(info.StreamURL)
	playback := &model.Playback{StreamType: streamType}
	if streamType == model.StreamHLS {
		// The proxy only rebroadcasts FLV: HLS upstreams are handed back
		// directly and any stale session entry is dropped.
		s.store.Remove(key)
		playback.URL = info.StreamURL
	} else {
		s.store.Insert(key, info.StreamURL)
		playback.URL = s.proxyURL(req.Platform, roomID)
	}
	if req.Debug {
		playback.UpstreamURL = info.StreamURL
		playback.Variants = truncateVariants(info.AvailableStreams, maxDebugVariants)
	}

	return model.LiveStreamResponse{Status: model.RespLive, Room: meta, Playback: playback}
}

// classifyError maps a resolver's free-text failure to the externally
// visible tri-state, per spec §7: Offline surfaces no error text, every
// other kind does.
func (s *Service) classifyError(roomID, message string) model.LiveStreamResponse {
	kind := streamerr.Classify(message)
	room := model.RoomMeta{RoomID: roomID}
	if kind == streamerr.Offline {
		return model.LiveStreamResponse{Status: model.RespOffline, Room: room}
	}
	return model.LiveStreamResponse{Status: model.RespError, Room: room, Error: message}
}

func truncateVariants(variants []model.StreamVariant, limit int) []model.StreamVariant {
	if len(variants) <= limit {
		return variants
	}
	return variants[:limit]
}
