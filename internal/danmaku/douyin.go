package danmaku

import (
	"bytes"
	"compress/gzip"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/imroc/req/v3"

	"github.com/christian-lee/streamcast/internal/jsworker"
	"github.com/christian-lee/streamcast/internal/model"
)

const (
	douyinWSBase          = "wss://webcast5-ws-web-lf.douyin.com/webcast/im/push/v2/"
	douyinDesktopUA       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	douyinPayloadMsg      = "msg"
	douyinPayloadAck      = "ack"
	douyinPayloadHeartbeat = "hb"
	douyinHeartbeatPeriod = 5 * time.Second
)

// douyinSignedKeys is the whitelisted subset of WSS query keys folded into
// the signature's md5 input. Keys are joined in this list's order, not
// sorted.
var douyinSignedKeys = []string{
	"live_id", "aid", "version_code", "webcast_sdk_version",
	"room_id", "sub_channel_id", "sdk_version", "did_rule",
	"user_unique_id", "device_platform", "device_type", "ac",
	"identity",
}

// DouyinClient implements Client for Douyin's protobuf PushFrame/Response
// websocket protocol: gzip payloads, ack-on-need_ack, and a signed WSS URL
// whose signature is produced by sign.js running inside the JS worker.
type DouyinClient struct {
	RoomID  string
	Client  *req.Client
	JS      *jsworker.Worker

	conn *websocket.Conn
}

func NewDouyinClient(roomID string, client *req.Client, js *jsworker.Worker) *DouyinClient {
	return &DouyinClient{RoomID: roomID, Client: client, JS: js}
}

func (c *DouyinClient) Connect(ctx context.Context) error {
	cookies, userUniqueID, err := c.harvestCookies(ctx)
	if err != nil {
		return err
	}

	nowMs := time.Now().UnixMilli()
	query := c.buildQuery(userUniqueID, nowMs)

	signature, err := c.sign(query)
	if err != nil {
		return fmt.Errorf("internal: douyin danmaku sign: %w", err)
	}
	query.Set("signature", signature)

	wssURL := douyinWSBase + "?" + query.Encode()

	header := map[string][]string{
		"User-Agent": {douyinDesktopUA},
		"Cookie":     {cookies},
	}
	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, wssURL, header)
	if err != nil {
		return fmt.Errorf("network: douyin danmaku dial: %w", err)
	}
	c.conn = conn
	return nil
}

func (c *DouyinClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// harvestCookies issues a HEAD then GET to live.douyin.com and keeps the
// subset of cookies the live websocket expects, deriving user_unique_id
// per spec §4.6: s_v_web_id, else ttwid, else the current millisecond clock.
func (c *DouyinClient) harvestCookies(ctx context.Context) (cookieHeader, userUniqueID string, err error) {
	const wanted = "ttwid,__ac_nonce,msToken,s_v_web_id,tt_scid"
	wantSet := make(map[string]bool)
	for _, name := range strings.Split(wanted, ",") {
		wantSet[name] = true
	}

	if _, err := c.Client.R().SetContext(ctx).Head("https://live.douyin.com/"); err != nil {
		return "", "", fmt.Errorf("network: douyin head: %w", err)
	}
	resp, err := c.Client.R().SetContext(ctx).Get("https://live.douyin.com/")
	if err != nil {
		return "", "", fmt.Errorf("network: douyin get: %w", err)
	}

	var parts []string
	values := make(map[string]string)
	for _, ck := range resp.Cookies() {
		if wantSet[ck.Name] {
			parts = append(parts, ck.Name+"="+ck.Value)
			values[ck.Name] = ck.Value
		}
	}

	userUniqueID = values["s_v_web_id"]
	if userUniqueID == "" {
		userUniqueID = values["ttwid"]
	}
	if userUniqueID == "" {
		userUniqueID = strconv.FormatInt(time.Now().UnixMilli(), 10)
	}
	return strings.Join(parts, "; "), userUniqueID, nil
}

// buildQuery assembles the full desktop-browser parameter set plus cursor
// and internal_ext, following websocket_connection.rs's template.
func (c *DouyinClient) buildQuery(userUniqueID string, nowMs int64) url.Values {
	q := url.Values{}
	q.Set("app_name", "douyin_web")
	q.Set("version_code", "180800")
	q.Set("webcast_sdk_version", "1.0.14-beta.0")
	q.Set("update_version_code", "1.0.14-beta.0")
	q.Set("compress", "gzip")
	q.Set("device_platform", "web")
	q.Set("cookie_enabled", "true")
	q.Set("screen_width", "1920")
	q.Set("screen_height", "1080")
	q.Set("browser_language", "zh-CN")
	q.Set("browser_platform", "Win32")
	q.Set("browser_name", "Chrome")
	q.Set("browser_version", "120.0.0.0")
	q.Set("browser_online", "true")
	q.Set("tz_name", "Asia/Shanghai")
	q.Set("identity", "audience")
	q.Set("room_id", c.RoomID)
	q.Set("heartbeatDuration", "0")
	q.Set("signature", "00000000000000000000000000000000")
	q.Set("aid", "6383")
	q.Set("live_id", "1")
	q.Set("did_rule", "3")
	q.Set("sub_channel_id", "0")
	q.Set("sdk_version", "1.0.14-beta.0")
	q.Set("user_unique_id", userUniqueID)
	q.Set("device_type", "pc")
	q.Set("ac", "wifi")

	cursor := fmt.Sprintf("d-1_u-1_fh-%d_t-%d_r-1", nowMs, nowMs)
	q.Set("cursor", cursor)

	internalExt := fmt.Sprintf("internal_src:dim|wss_push_room_id:%s|wss_push_did:%s|first_req_ms:%d|fetch_time:%d|seq:1|wss_info:0-%d-0-0|wrds_v:1",
		c.RoomID, userUniqueID, nowMs, nowMs, nowMs)
	q.Set("internal_ext", internalExt)

	return q
}

// sign hashes the whitelisted query subset and routes it through the C2
// JS worker's get_sign, per spec §4.6.
func (c *DouyinClient) sign(q url.Values) (string, error) {
	var pairs []string
	for _, key := range douyinSignedKeys {
		if v := q.Get(key); v != "" {
			pairs = append(pairs, key+"="+v)
		}
	}
	joined := strings.Join(pairs, ",")

	sum := md5.Sum([]byte(joined))
	md5Hex := hex.EncodeToString(sum[:])

	expr := fmt.Sprintf("get_sign(%q)", md5Hex)
	return c.JS.EvalString(expr)
}

func (c *DouyinClient) Run(ctx context.Context, sink Sink) error {
	if c.conn == nil {
		return fmt.Errorf("internal: douyin run without connect")
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

	ticker := time.NewTicker(douyinHeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			hb := encodePushFrame(douyinPushFrame{payloadType: douyinPayloadHeartbeat, logID: 0})
			if err := c.conn.WriteMessage(websocket.PingMessage, hb); err != nil {
				return fmt.Errorf("network: douyin heartbeat: %w", err)
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

func (c *DouyinClient) handleFrame(data []byte, sink Sink) error {
	frame, err := decodePushFrame(data)
	if err != nil {
		return nil
	}

	switch frame.payloadType {
	case douyinPayloadMsg:
		return c.handleMsgPayload(frame, sink)
	default:
		sink.Emit("douyin_frame", frame.payloadType)
		return nil
	}
}

func (c *DouyinClient) handleMsgPayload(frame douyinPushFrame, sink Sink) error {
	reader, err := gzip.NewReader(bytes.NewReader(frame.payload))
	if err != nil {
		return nil
	}
	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil
	}

	resp, err := decodeResponse(raw)
	if err != nil {
		return nil
	}

	for _, m := range resp.messagesList {
		if m.method == "WebcastChatMessage" {
			chat, err := decodeChatMessage(m.payload)
			if err != nil {
				continue
			}
			c.dispatchChat(chat, sink)
		}
	}

	if resp.needAck {
		ack := encodePushFrame(douyinPushFrame{
			payloadType: douyinPayloadAck,
			logID:       frame.logID,
			payload:     []byte(resp.internalExt),
		})
		if err := c.conn.WriteMessage(websocket.BinaryMessage, ack); err != nil {
			return fmt.Errorf("network: douyin ack: %w", err)
		}
	}
	return nil
}

func (c *DouyinClient) dispatchChat(chat douyinChatMessage, sink Sink) {
	nick := "系统"
	userLevel := 0
	fansClubLevel := 0
	if chat.user != nil {
		if chat.user.nickName != "" {
			nick = chat.user.nickName
		}
		userLevel = int(chat.user.payGradeLevel)
		fansClubLevel = int(chat.user.fansClubLevel)
	}
	sink.OnDanmaku(model.DanmakuEvent{
		RoomID:        c.RoomID,
		User:          nick,
		Content:       chat.content,
		UserLevel:     userLevel,
		FansClubLevel: fansClubLevel,
	})
}
