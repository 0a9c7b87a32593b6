package danmaku

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/gorilla/websocket"
	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"

	"github.com/christian-lee/streamcast/internal/model"
	"github.com/christian-lee/streamcast/internal/signing"
)

const (
	bilibiliOpHeartbeat = 2
	bilibiliOpAuth      = 7
	bilibiliOpAuthReply = 8
	bilibiliOpPopularity = 3
	bilibiliOpBusiness  = 5

	bilibiliHeaderSize      = 16
	bilibiliProtoVerJSON    = 0
	bilibiliProtoVerBrotli  = 3
	bilibiliHeartbeatPeriod = 30 * time.Second
)

// BilibiliClient implements Client for Bilibili's framed auth/heartbeat/
// business protocol, with brotli decompression for batched business frames.
type BilibiliClient struct {
	RoomID string
	Client *req.Client

	conn    *websocket.Conn
	hosts   []string
	wssPort int
	token   string
	hostIdx int
}

func NewBilibiliClient(roomID string, client *req.Client) *BilibiliClient {
	return &BilibiliClient{RoomID: roomID, Client: client}
}

func (c *BilibiliClient) Connect(ctx context.Context) error {
	if len(c.hosts) == 0 {
		if err := c.fetchDanmuInfo(ctx); err != nil {
			return err
		}
	}
	if len(c.hosts) == 0 {
		return fmt.Errorf("api: no bilibili danmaku hosts")
	}

	host := c.hosts[c.hostIdx%len(c.hosts)]
	c.hostIdx++
	url := fmt.Sprintf("wss://%s:%d/sub", host, c.wssPort)
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("network: bilibili dial: %w", err)
	}
	c.conn = conn

	authBody, err := json.Marshal(map[string]any{
		"uid":      0,
		"roomid":   c.RoomID,
		"protover": 3,
		"platform": "web",
		"type":     2,
		"key":      c.token,
	})
	if err != nil {
		return fmt.Errorf("internal: marshal auth: %w", err)
	}
	if err := c.send(bilibiliOpAuth, authBody); err != nil {
		return err
	}
	return nil
}

func (c *BilibiliClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

func (c *BilibiliClient) fetchDanmuInfo(ctx context.Context) error {
	imgKey, subKey, err := fetchWbiKeysForDanmaku(ctx, c.Client)
	if err != nil {
		return err
	}
	params := map[string]string{"id": c.RoomID, "type": "0"}
	query := signing.WbiSign(params, imgKey, subKey, time.Now())
	resp, err := c.Client.R().SetContext(ctx).
		Get("https://api.live.bilibili.com/xlive/web-room/v1/index/getDanmuInfo?" + query)
	if err != nil {
		return fmt.Errorf("network: getDanmuInfo: %w", err)
	}
	body := resp.Bytes()
	c.token = gjson.GetBytes(body, "data.token").String()
	gjson.GetBytes(body, "data.host_list").ForEach(func(_, v gjson.Result) bool {
		c.hosts = append(c.hosts, v.Get("host").String())
		c.wssPort = int(v.Get("wss_port").Int())
		return true
	})
	if c.token == "" || len(c.hosts) == 0 {
		return fmt.Errorf("api: missing getDanmuInfo token or hosts")
	}
	return nil
}

// fetchWbiKeysForDanmaku mirrors the resolver's nav fetch; the danmaku
// client doesn't share a Resolver instance so it keeps its own minimal copy.
func fetchWbiKeysForDanmaku(ctx context.Context, client *req.Client) (imgKey, subKey string, err error) {
	resp, err := client.R().SetContext(ctx).Get("https://api.bilibili.com/x/web-interface/nav")
	if err != nil {
		return "", "", fmt.Errorf("network: %w", err)
	}
	body := resp.Bytes()
	imgKey = takeFilenameStem(gjson.GetBytes(body, "data.wbi_img.img_url").String())
	subKey = takeFilenameStem(gjson.GetBytes(body, "data.wbi_img.sub_url").String())
	if imgKey == "" || subKey == "" {
		return "", "", fmt.Errorf("api: missing wbi keys")
	}
	return imgKey, subKey, nil
}

func takeFilenameStem(rawURL string) string {
	slash := -1
	for i := len(rawURL) - 1; i >= 0; i-- {
		if rawURL[i] == '/' {
			slash = i
			break
		}
	}
	if slash < 0 {
		return ""
	}
	name := rawURL[slash+1:]
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[:i]
		}
	}
	return name
}

func (c *BilibiliClient) send(operation int32, body []byte) error {
	frame := encodeBilibiliFrame(operation, body)
	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		return fmt.Errorf("network: bilibili send: %w", err)
	}
	return nil
}

func encodeBilibiliFrame(operation int32, body []byte) []byte {
	packLen := uint32(bilibiliHeaderSize + len(body))
	buf := make([]byte, bilibiliHeaderSize+len(body))
	binary.BigEndian.PutUint32(buf[0:4], packLen)
	binary.BigEndian.PutUint16(buf[4:6], bilibiliHeaderSize)
	binary.BigEndian.PutUint16(buf[6:8], 1)
	binary.BigEndian.PutUint32(buf[8:12], uint32(operation))
	binary.BigEndian.PutUint32(buf[12:16], 1)
	copy(buf[16:], body)
	return buf
}

func (c *BilibiliClient) Run(ctx context.Context, sink Sink) error {
	if c.conn == nil {
		return fmt.Errorf("internal: bilibili run without connect")
	}

	done := make(chan error, 1)
	msgCh := make(chan []byte, 64)
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

	ticker := time.NewTicker(bilibiliHeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.send(bilibiliOpHeartbeat, []byte("{}")); err != nil {
				return err
			}
		case data, ok := <-msgCh:
			if !ok {
				return <-done
			}
			if err := c.handleFrame(data, sink); err != nil {
				return err
			}
		}
	}
}

func (c *BilibiliClient) handleFrame(data []byte, sink Sink) error {
	if len(data) < bilibiliHeaderSize {
		return nil
	}
	ver := binary.BigEndian.Uint16(data[6:8])
	operation := binary.BigEndian.Uint32(data[8:12])
	body := data[bilibiliHeaderSize:]

	switch operation {
	case bilibiliOpAuthReply:
		return c.send(bilibiliOpHeartbeat, []byte("{}"))
	case bilibiliOpPopularity:
		sink.Emit("bilibili_popularity", nil)
	case bilibiliOpBusiness:
		c.handleBusinessFrame(int(ver), body, sink)
	}
	return nil
}

func (c *BilibiliClient) handleBusinessFrame(ver int, body []byte, sink Sink) {
	if ver == bilibiliProtoVerBrotli {
		reader := brotli.NewReader(bytes.NewReader(body))
		decompressed, err := io.ReadAll(reader)
		if err != nil {
			return
		}
		for offset := 0; offset+bilibiliHeaderSize <= len(decompressed); {
			packLen := int(binary.BigEndian.Uint32(decompressed[offset : offset+4]))
			if packLen <= 0 || offset+packLen > len(decompressed) {
				break
			}
			c.handleFrame(decompressed[offset:offset+packLen], sink)
			offset += packLen
		}
		return
	}
	c.dispatchBusinessJSON(body, sink)
}

func (c *BilibiliClient) dispatchBusinessJSON(body []byte, sink Sink) {
	cmd := gjson.GetBytes(body, "cmd").String()
	switch cmd {
	case "DANMU_MSG":
		info := gjson.GetBytes(body, "info")
		sink.OnDanmaku(model.DanmakuEvent{
			RoomID:  c.RoomID,
			User:    info.Get("2.1").String(),
			Content: info.Get("1").String(),
		})
		sink.Emit("bilibili_danmu", body)
	case "SEND_GIFT":
		sink.Emit("bilibili_gift", body)
	default:
		sink.Emit("bilibili_unsupported", body)
	}
}
