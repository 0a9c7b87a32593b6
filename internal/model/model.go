// Package model holds the platform-neutral data shapes shared across
// resolvers, danmaku clients, the session store, and the unified command.
package model

// Platform is the closed set of supported upstream platforms.
type Platform string

const (
	Douyu    Platform = "douyu"
	Bilibili Platform = "bilibili"
	Douyin   Platform = "douyin"
	Huya     Platform = "huya"
)

// Status is the platform-neutral resolver tri-state.
type Status int

const (
	StatusLive Status = iota
	StatusOffline
	StatusError
)

// StreamFormat is the wire container of a StreamVariant.
type StreamFormat string

const (
	FormatFLV  StreamFormat = "flv"
	FormatTS   StreamFormat = "ts"
	FormatFMP4 StreamFormat = "fmp4"
	FormatMP4  StreamFormat = "mp4"
	FormatM4S  StreamFormat = "m4s"
	FormatM3U8 StreamFormat = "m3u8"
)

// StreamType is C9's flattened playback-URL classification.
type StreamType string

const (
	StreamFLV     StreamType = "flv"
	StreamHLS     StreamType = "hls"
	StreamUnknown StreamType = "unknown"
)

// StreamVariant is one candidate playback URL a resolver produced.
type StreamVariant struct {
	URL      string
	Format   StreamFormat
	Desc     string
	QN       int
	Protocol string
}

// LiveStreamInfo is a resolver's raw output, before C9 reshapes it.
type LiveStreamInfo struct {
	Title            string
	AnchorName       string
	Avatar           string
	StreamURL        string
	Status           Status
	ErrorMessage     string
	UpstreamURL      string
	AvailableStreams []StreamVariant
	NormalizedRoomID string
	WebRid           string
}

// RoomMeta is the metadata slice of a LiveStreamResponse.
type RoomMeta struct {
	Title      string
	AnchorName string
	Avatar     string
	RoomID     string
}

// Playback is the playback slice of a LiveStreamResponse, present only on
// success.
type Playback struct {
	URL         string
	StreamType  StreamType
	UpstreamURL string
	Variants    []StreamVariant
}

// ResponseStatus is C9's externally visible tri-state.
type ResponseStatus string

const (
	RespLive    ResponseStatus = "live"
	RespOffline ResponseStatus = "offline"
	RespError   ResponseStatus = "error"
)

// LiveStreamResponse is the unified command's output shape.
type LiveStreamResponse struct {
	Status   ResponseStatus
	Room     RoomMeta
	Playback *Playback
	Error    string
}

// DanmakuEvent is a normalized chat event emitted by any platform client.
type DanmakuEvent struct {
	RoomID        string
	User          string
	Content       string
	UserLevel     int
	FansClubLevel int
}

// SessionKey identifies a stream session.
type SessionKey struct {
	Platform Platform
	RoomID   string
}

// Mode selects how much of C9's pipeline runs.
type Mode string

const (
	ModePlayback Mode = "playback"
	ModeMeta     Mode = "meta"
)

// Request is C9's input shape.
type Request struct {
	Platform Platform
	RoomID   string
	Quality  string
	Line     string
	Cookie   string
	Debug    bool
	Mode     Mode
}
