package danmaku

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"

	"github.com/christian-lee/streamcast/internal/model"
	"github.com/christian-lee/streamcast/internal/tars"
)

const (
	huyaDanmakuWSURL    = "wss://cdnws.api.huya.com"
	huyaDanmakuUA       = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	huyaHeartbeatPeriod = 20 * time.Second
	huyaTopCmdChat      = 7
	huyaNestedCmdChat   = 1400
)

// huyaHeartbeat is the fixed heartbeat frame danmaku.rs sends
// verbatim (an UserHeartBeat "OnUserHeartBeat" wscmd body); it carries no
// per-room state so it's reused unmodified on every tick.
var huyaHeartbeat = []byte{
	0x00, 0x03, 0x1d, 0x00, 0x00, 0x69, 0x00, 0x00, 0x00, 0x69, 0x10, 0x03, 0x2c, 0x3c, 0x4c, 0x56,
	0x08, 0x6f, 0x6e, 0x6c, 0x69, 0x6e, 0x65, 0x75, 0x69, 0x66, 0x0f, 0x4f, 0x6e, 0x55, 0x73, 0x65,
	0x72, 0x48, 0x65, 0x61, 0x72, 0x74, 0x42, 0x65, 0x61, 0x74, 0x7d, 0x00, 0x00, 0x3c, 0x08, 0x00,
	0x01, 0x06, 0x04, 0x74, 0x52, 0x65, 0x71, 0x1d, 0x00, 0x00, 0x2f, 0x0a, 0x0a, 0x0c, 0x16, 0x00,
	0x26, 0x00, 0x36, 0x07, 0x61, 0x64, 0x72, 0x5f, 0x77, 0x61, 0x70, 0x46, 0x00, 0x0b, 0x12, 0x03,
	0xae, 0xf0, 0x0f, 0x22, 0x03, 0xae, 0xf0, 0x0f, 0x3c, 0x42, 0x6d, 0x52, 0x02, 0x60, 0x5c, 0x60,
	0x01, 0x7c, 0x82, 0x00, 0x0b, 0xb0, 0x1f, 0x9c, 0xac, 0x0b, 0x8c, 0x98, 0x0c, 0xa8, 0x0c,
}

var (
	huyaTTProfileRe = regexp.MustCompile(`var\s+TT_PROFILE_INFO\s*=\s*(\{[\s\S]*?\});`)
	huyaLPRe        = regexp.MustCompile(`\\"lp\\"\s*:\s*\\?"?(\d+)`)
	huyaAyyuidRe    = regexp.MustCompile(`\\"ayyuid\\"\s*:\s*\\?"?(\d+)`)
	huyaYyuidRe     = regexp.MustCompile(`\\"yyuid\\"\s*:\s*\\?"?(\d+)`)
)

// HuyaClient implements Client for Huya's TARS-framed chat-room websocket:
// a fixed registration payload naming `live:{id}`/`chat:{id}` topics, a
// literal heartbeat frame every 20s, and tag-addressed TARS decoding of
// incoming chat frames.
type HuyaClient struct {
	RoomID string
	Client *req.Client

	conn *websocket.Conn
}

func NewHuyaClient(roomID string, client *req.Client) *HuyaClient {
	return &HuyaClient{RoomID: roomID, Client: client}
}

func (c *HuyaClient) Connect(ctx context.Context) error {
	ayyuid, err := c.resolveAyyuid(ctx)
	if err != nil {
		return err
	}

	regData := buildHuyaRegistration(ayyuid)

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, huyaDanmakuWSURL, nil)
	if err != nil {
		return fmt.Errorf("network: huya danmaku dial: %w", err)
	}
	c.conn = conn

	if err := c.conn.WriteMessage(websocket.BinaryMessage, regData); err != nil {
		return fmt.Errorf("network: huya registration: %w", err)
	}
	return nil
}

func (c *HuyaClient) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// resolveAyyuid mirrors get_ws_info_tars's room-page scrape: TT_PROFILE_INFO
// lp field, then raw lp/ayyuid/yyuid regex matches against the escaped page
// source, then a profileRoom API fallback, then the raw room id itself.
func (c *HuyaClient) resolveAyyuid(ctx context.Context) (string, error) {
	resp, err := c.Client.R().SetContext(ctx).
		SetHeader("User-Agent", huyaDanmakuUA).
		SetHeader("Referer", "https://www.huya.com/").
		Get("https://www.huya.com/" + c.RoomID)
	if err != nil {
		return "", fmt.Errorf("network: huya room page: %w", err)
	}
	page := resp.String()

	if m := huyaTTProfileRe.FindStringSubmatch(page); m != nil {
		if lp := gjson.Get(m[1], "lp").String(); lp != "" {
			return lp, nil
		}
	}
	if m := huyaLPRe.FindStringSubmatch(page); m != nil {
		return m[1], nil
	}
	if m := huyaAyyuidRe.FindStringSubmatch(page); m != nil {
		return m[1], nil
	}
	if m := huyaYyuidRe.FindStringSubmatch(page); m != nil {
		return m[1], nil
	}

	apiResp, err := c.Client.R().SetContext(ctx).
		SetHeader("User-Agent", huyaDanmakuUA).
		Get(fmt.Sprintf("https://mp.huya.com/cache.php?m=Live&do=profileRoom&roomid=%s", c.RoomID))
	if err == nil {
		if uid := findHuyaUIDInJSON(apiResp.Bytes()); uid != "" {
			return uid, nil
		}
	}

	return c.RoomID, nil
}

// findHuyaUIDInJSON walks arbitrary JSON looking for the first ayyuid,
// yyuid, lp, or uid key with a non-empty value.
func findHuyaUIDInJSON(body []byte) string {
	var found string
	var walk func(res gjson.Result)
	walk = func(res gjson.Result) {
		if found != "" {
			return
		}
		if res.IsObject() {
			res.ForEach(func(key, val gjson.Result) bool {
				k := strings.ToLower(key.String())
				if k == "ayyuid" || k == "yyuid" || k == "lp" || k == "uid" {
					if val.String() != "" {
						found = val.String()
						return false
					}
				}
				walk(val)
				return found == ""
			})
		} else if res.IsArray() {
			res.ForEach(func(_, val gjson.Result) bool {
				walk(val)
				return found == ""
			})
		}
	}
	walk(gjson.ParseBytes(body))
	return found
}

// buildHuyaRegistration encodes the wscmd{cmd=16, data=PushMessage{topics,""}}
// payload get_ws_info_tars builds for the initial binary send.
func buildHuyaRegistration(ayyuid string) []byte {
	topics := []string{"live:" + ayyuid, "chat:" + ayyuid}

	inner := tars.NewEncoder()
	inner.WriteList(0, topics)
	inner.WriteString(1, "")

	outer := tars.NewEncoder()
	outer.WriteInt32(0, 16)
	outer.WriteBytes(1, inner.Bytes())
	return outer.Bytes()
}

func (c *HuyaClient) Run(ctx context.Context, sink Sink) error {
	if c.conn == nil {
		return fmt.Errorf("internal: huya run without connect")
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

	ticker := time.NewTicker(huyaHeartbeatPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.BinaryMessage, huyaHeartbeat); err != nil {
				return fmt.Errorf("network: huya heartbeat: %w", err)
			}
		case data, ok := <-msgCh:
			if !ok {
				return <-done
			}
			c.handleFrame(data, sink)
		}
	}
}

func (c *HuyaClient) handleFrame(data []byte, sink Sink) {
	top := tars.NewDecoder(data)
	topCmd, err := top.ReadInt32(0, false, -1)
	if err != nil || topCmd != huyaTopCmdChat {
		return
	}

	b1, err := top.ReadBytes(1, false, nil)
	if err != nil || b1 == nil {
		return
	}
	nestedDec := tars.NewDecoder(b1)
	nested, err := nestedDec.ReadInt32(1, false, -1)
	if err != nil || nested != huyaNestedCmdChat {
		sink.Emit("huya_frame", nested)
		return
	}

	b2, err := nestedDec.ReadBytes(2, false, nil)
	if err != nil || b2 == nil {
		return
	}
	payload := tars.NewDecoder(b2)

	nick := "匿名"
	if userStruct, ok, _ := payload.ReadStruct(0, false); ok {
		if name, _ := userStruct.ReadString(2, false, ""); name != "" {
			nick = name
		}
	}
	text, err := payload.ReadString(3, false, "")
	if err != nil || text == "" {
		return
	}

	sink.OnDanmaku(model.DanmakuEvent{
		RoomID:  c.RoomID,
		User:    nick,
		Content: text,
	})
}
