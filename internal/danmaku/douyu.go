package danmaku

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/christian-lee/streamcast/internal/model"
)

const (
	douyuWSURL           = "wss://danmuproxy.douyu.com:8506/"
	douyuFrameMagic      = 689
	douyuHeartbeatPeriod = 45 * time.Second
)

// DouyuClient implements Client for Douyu's `key@=value/` text protocol.
type DouyuClient struct {
	RoomID string

	conn *websocket.Conn
}

func NewDouyuClient(roomID string) *DouyuClient {
	return &DouyuClient{RoomID: roomID}
}

func (c *DouyuClient) Connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	header := map[string][]string{"Sec-WebSocket-Protocol": {"binary"}}
	conn, _, err := dialer.DialContext(ctx, douyuWSURL, header)
	if err != nil {
		return fmt.Errorf("network: douyu dial: %w", err)
	}
	c.conn = conn

	if err := c.sendText(fmt.Sprintf("type@=loginreq/roomid@=%s/", c.RoomID)); err != nil {
		return err
	}
	if err := c.sendText(fmt.Sprintf("type@=joingroup/rid@=%s/gid@=1/", c.RoomID)); err != nil {
		return err
	}
	return nil
}

func (c *DouyuClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *DouyuClient) Run(ctx context.Context, sink Sink) error {
	if c.conn == nil {
		return fmt.Errorf("internal: douyu run without connect")
	}

	done := make(chan error, 1)
	msgCh := make(chan []byte, 32)

	go func() {
		defer close(msgCh)
		for {
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			msgCh <- data
		}
	}()

	ticker := time.NewTicker(douyuHeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.sendText("type@=mrkl/"); err != nil {
				return err
			}
		case data, ok := <-msgCh:
			if !ok {
				return <-done
			}
			c.decodeFrame(data, sink)
		}
	}
}

func (c *DouyuClient) sendText(body string) error {
	frame := encodeDouyuFrame(body)
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("network: douyu send: %w", err)
	}
	return nil
}

// encodeDouyuFrame wraps body per spec §4.6: len_le(4) twice, a 2-byte
// little-endian magic (689), two reserved zero bytes, the ascii body, and
// a trailing 0x00.
func encodeDouyuFrame(body string) []byte {
	payload := []byte(body)
	length := uint32(len(payload) + 1 + 2 + 2) // body + trailing nul + magic + reserved
	buf := make([]byte, 0, 8+len(payload)+3)
	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, length)
	buf = append(buf, lenBuf...)
	buf = append(buf, lenBuf...)
	magicBuf := make([]byte, 2)
	binary.LittleEndian.PutUint16(magicBuf, douyuFrameMagic)
	buf = append(buf, magicBuf...)
	buf = append(buf, 0x00, 0x00)
	buf = append(buf, payload...)
	buf = append(buf, 0x00)
	return buf
}

func (c *DouyuClient) decodeFrame(data []byte, sink Sink) {
	const headerLen = 12
	if len(data) <= headerLen {
		return
	}
	body := strings.TrimSuffix(string(data[headerLen:]), "\x00")
	fields := parseDouyuKV(body)

	switch fields["type"] {
	case "chatmsg":
		sink.OnDanmaku(model.DanmakuEvent{
			RoomID:  c.RoomID,
			User:    unescapeDouyu(fields["nn"]),
			Content: unescapeDouyu(fields["txt"]),
		})
		sink.Emit("douyu_chatmsg", fields)
	case "uenter":
		sink.Emit("douyu_uenter", fields)
	}
}

// parseDouyuKV splits a "key@=value/key@=value/..." frame body into a flat
// map of its key/value pairs.
func parseDouyuKV(body string) map[string]string {
	out := make(map[string]string)
	for _, pair := range strings.Split(body, "/") {
		if pair == "" {
			continue
		}
		idx := strings.Index(pair, "@=")
		if idx < 0 {
			continue
		}
		out[pair[:idx]] = pair[idx+2:]
	}
	return out
}

func unescapeDouyu(s string) string {
	s = strings.ReplaceAll(s, "@S", "/")
	s = strings.ReplaceAll(s, "@A", "@")
	return s
}
