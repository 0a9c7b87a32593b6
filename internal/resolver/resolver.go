// Package resolver implements the four platform-specific playback
// resolvers (C5): fetch room JSON, normalize identifiers, build a ranked
// stream-variant list, pick one by quality+CDN policy.
package resolver

import (
	"context"

	"github.com/christian-lee/streamcast/internal/model"
)

// Resolver is the shared contract C9 drives; each platform implements it.
type Resolver interface {
	Resolve(ctx context.Context, req model.Request) (model.LiveStreamInfo, error)
}

// InferStreamType classifies a playback URL per spec §8: "*.m3u8?..." is
// hls, "*/live.flv?..." (any .flv path) is flv, otherwise unknown.
func InferStreamType(rawURL string) model.StreamType {
	u := rawURL
	// strip query/fragment before extension sniffing
	if i := indexAny(u, "?#"); i >= 0 {
		u = u[:i]
	}
	switch {
	case hasSuffixFold(u, ".m3u8"):
		return model.StreamHLS
	case hasSuffixFold(u, ".flv"):
		return model.StreamFLV
	default:
		return model.StreamUnknown
	}
}

func indexAny(s, chars string) int {
	for i := 0; i < len(s); i++ {
		for j := 0; j < len(chars); j++ {
			if s[i] == chars[j] {
				return i
			}
		}
	}
	return -1
}

func hasSuffixFold(s, suffix string) bool {
	if len(s) < len(suffix) {
		return false
	}
	tail := s[len(s)-len(suffix):]
	for i := range tail {
		a, b := tail[i], suffix[i]
		if 'A' <= a && a <= 'Z' {
			a += 'a' - 'A'
		}
		if 'A' <= b && b <= 'Z' {
			b += 'a' - 'A'
		}
		if a != b {
			return false
		}
	}
	return true
}
