package resolver

import (
	"context"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"

	"github.com/christian-lee/streamcast/internal/jsworker"
	"github.com/christian-lee/streamcast/internal/model"
)

const (
	douyuUA  = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/114.0.0.0 Safari/537.36"
	douyuDID = "10000000000000000000000000001501"
)

// douyuRateVariant is one entry of getH5Play's multirates list.
type douyuRateVariant struct {
	name string
	rate int
	bit  int
}

// DouyuResolver implements Resolver for Douyu (spec §4.5 "Douyu").
type DouyuResolver struct {
	Client *req.Client
	JS     *jsworker.Worker
}

func NewDouyuResolver(client *req.Client, js *jsworker.Worker) *DouyuResolver {
	return &DouyuResolver{Client: client, JS: js}
}

func (r *DouyuResolver) Resolve(ctx context.Context, request model.Request) (model.LiveStreamInfo, error) {
	rid := request.RoomID

	roomID, live, title, err := r.fetchRoomDetail(ctx, rid)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}
	if !live {
		return model.LiveStreamInfo{
			Status:           model.StatusOffline,
			Title:            title,
			NormalizedRoomID: roomID,
			ErrorMessage:     "主播未开播",
		}, nil
	}

	crptext, err := r.getH5Enc(ctx, roomID)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}

	ts := time.Now().Unix()
	signData, err := r.sign(roomID, ts, crptext)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}

	variants, cdns, err := r.getPlayQualities(ctx, roomID, signData)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}

	rate := resolveDouyuRate(request.Quality, variants)
	cdn := selectDouyuCDN(request.Line, cdns)

	url, err := r.getPlayURL(ctx, roomID, signData, rate, cdn)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}

	return model.LiveStreamInfo{
		Status:           model.StatusLive,
		Title:            title,
		NormalizedRoomID: roomID,
		StreamURL:        url,
		UpstreamURL:      url,
		AvailableStreams: []model.StreamVariant{{URL: url, Format: model.FormatFLV}},
	}, nil
}

func (r *DouyuResolver) fetchRoomDetail(ctx context.Context, rid string) (roomID string, live bool, title string, err error) {
	url := fmt.Sprintf("https://www.douyu.com/betard/%s", rid)
	resp, err := r.Client.R().SetContext(ctx).
		SetHeader("Referer", fmt.Sprintf("https://www.douyu.com/%s", rid)).
		Get(url)
	if err != nil {
		return "", false, "", fmt.Errorf("network: %w", err)
	}
	body := resp.Bytes()
	roomID = gjson.GetBytes(body, "room.room_id").String()
	if roomID == "" {
		return "", false, "", fmt.Errorf("api: missing room_id")
	}
	title = gjson.GetBytes(body, "room.room_name").String()
	showStatus := gjson.GetBytes(body, "room.show_status").Int()
	return roomID, showStatus == 1, title, nil
}

func (r *DouyuResolver) getH5Enc(ctx context.Context, roomID string) (string, error) {
	url := fmt.Sprintf("https://www.douyu.com/swf_api/homeH5Enc?rids=%s", roomID)
	resp, err := r.Client.R().SetContext(ctx).
		SetHeader("Referer", fmt.Sprintf("https://www.douyu.com/%s", roomID)).
		Get(url)
	if err != nil {
		return "", fmt.Errorf("network: %w", err)
	}
	body := resp.Bytes()
	if gjson.GetBytes(body, "error").Int() != 0 {
		return "", fmt.Errorf("api: homeH5Enc error %d", gjson.GetBytes(body, "error").Int())
	}
	crptext := gjson.GetBytes(body, "data.room"+roomID).String()
	if crptext == "" {
		return "", fmt.Errorf("api: missing homeH5Enc data")
	}
	return crptext, nil
}

func (r *DouyuResolver) sign(roomID string, ts int64, crptext string) (string, error) {
	expr := jsworker.WrapIsolatedDouyu(crptext, roomID, douyuDID, fmt.Sprintf("%d", ts))
	return r.JS.EvalString(expr)
}

func (r *DouyuResolver) getPlayQualities(ctx context.Context, roomID, signData string) ([]douyuRateVariant, []string, error) {
	payload := signData + "&cdn=&rate=-1&ver=Douyu_223061205&iar=1&ive=1&hevc=0&fa=0"
	url := fmt.Sprintf("https://www.douyu.com/lapi/live/getH5Play/%s", roomID)
	resp, err := r.Client.R().SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetBody(payload).
		Post(url)
	if err != nil {
		return nil, nil, fmt.Errorf("network: %w", err)
	}
	body := resp.Bytes()
	if gjson.GetBytes(body, "error").Int() != 0 {
		return nil, nil, fmt.Errorf("api: getH5Play error %d", gjson.GetBytes(body, "error").Int())
	}

	var cdns []string
	gjson.GetBytes(body, "data.cdnsWithName").ForEach(func(_, v gjson.Result) bool {
		if cdn := v.Get("cdn").String(); cdn != "" {
			cdns = append(cdns, cdn)
		}
		return true
	})
	sort.Slice(cdns, func(i, j int) bool {
		iScdn, jScdn := strings.HasPrefix(cdns[i], "scdn"), strings.HasPrefix(cdns[j], "scdn")
		if iScdn != jScdn {
			return !iScdn
		}
		return cdns[i] < cdns[j]
	})

	var variants []douyuRateVariant
	gjson.GetBytes(body, "data.multirates").ForEach(func(_, v gjson.Result) bool {
		variants = append(variants, douyuRateVariant{
			name: v.Get("name").String(),
			rate: int(v.Get("rate").Int()),
			bit:  int(v.Get("bit").Int()),
		})
		return true
	})
	return variants, cdns, nil
}

func (r *DouyuResolver) getPlayURL(ctx context.Context, roomID, signData string, rate int, cdn string) (string, error) {
	payload := fmt.Sprintf("%s&cdn=%s&rate=%d", signData, cdn, rate)
	url := fmt.Sprintf("https://www.douyu.com/lapi/live/getH5Play/%s", roomID)
	resp, err := r.Client.R().SetContext(ctx).
		SetHeader("Content-Type", "application/x-www-form-urlencoded").
		SetHeader("Referer", fmt.Sprintf("https://www.douyu.com/%s", roomID)).
		SetBody(payload).
		Post(url)
	if err != nil {
		return "", fmt.Errorf("network: %w", err)
	}
	body := resp.Bytes()
	if gjson.GetBytes(body, "error").Int() != 0 {
		return "", fmt.Errorf("api: getH5Play error %d", gjson.GetBytes(body, "error").Int())
	}
	rtmpURL := gjson.GetBytes(body, "data.rtmp_url").String()
	rtmpLive := html.UnescapeString(gjson.GetBytes(body, "data.rtmp_live").String())
	if rtmpURL == "" || rtmpLive == "" {
		return "", fmt.Errorf("api: missing rtmp fields")
	}
	return rtmpURL + "/" + rtmpLive, nil
}

// resolveDouyuRate implements spec §4.5's Douyu quality resolution table.
func resolveDouyuRate(quality string, variants []douyuRateVariant) int {
	if len(variants) == 0 {
		return -1
	}
	canonical := canonicalDouyuQuality(quality)

	findByKeyword := func(keywords []string, excludeZero bool) (int, bool) {
		for _, kw := range keywords {
			for _, v := range variants {
				if strings.Contains(v.name, kw) {
					if excludeZero && v.rate == 0 {
						continue
					}
					return v.rate, true
				}
			}
		}
		return 0, false
	}

	switch canonical {
	case "原画":
		for _, v := range variants {
			if v.rate == 0 {
				return v.rate
			}
		}
		if rate, ok := findByKeyword([]string{"原画", "蓝光8M", "蓝光"}, false); ok {
			return rate
		}
		return minRate(variants, false)
	case "高清":
		for _, v := range variants {
			if v.rate == 4 {
				return v.rate
			}
		}
		if rate, ok := findByKeyword([]string{"蓝光", "蓝光4M"}, false); ok {
			return rate
		}
		if rate, ok := findByKeyword([]string{"超清"}, true); ok {
			return rate
		}
		if rate, ok := findByKeyword([]string{"高清"}, true); ok {
			return rate
		}
		return maxBitRate(variants)
	case "标清":
		for _, v := range variants {
			if v.rate == 3 {
				return v.rate
			}
		}
		for _, kw := range []string{"超清", "流畅", "标清", "普清"} {
			if rate, ok := findByKeyword([]string{kw}, true); ok {
				return rate
			}
		}
		return minBitRate(variants)
	default:
		if rate, ok := findByKeyword([]string{canonical}, false); ok {
			return rate
		}
		return maxRate(variants)
	}
}

func canonicalDouyuQuality(q string) string {
	trimmed := strings.TrimSpace(q)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(trimmed, "原") || lower == "origin":
		return "原画"
	case strings.Contains(trimmed, "高") || lower == "high":
		return "高清"
	case strings.Contains(trimmed, "标") || lower == "standard":
		return "标清"
	default:
		return trimmed
	}
}

func minRate(variants []douyuRateVariant, excludeZero bool) int {
	best := -1
	for _, v := range variants {
		if excludeZero && v.rate == 0 {
			continue
		}
		if best == -1 || v.rate < best {
			best = v.rate
		}
	}
	return best
}

func maxRate(variants []douyuRateVariant) int {
	best := -1
	for _, v := range variants {
		if v.rate > best {
			best = v.rate
		}
	}
	return best
}

func maxBitRate(variants []douyuRateVariant) int {
	bestRate, bestBit := -1, -1
	for _, v := range variants {
		if v.rate == 0 {
			continue
		}
		if v.bit > bestBit {
			bestBit, bestRate = v.bit, v.rate
		}
	}
	if bestRate == -1 {
		return maxRate(variants)
	}
	return bestRate
}

func minBitRate(variants []douyuRateVariant) int {
	bestRate, bestBit := -1, -1
	for _, v := range variants {
		if v.rate == 0 {
			continue
		}
		if bestRate == -1 || v.bit < bestBit {
			bestBit, bestRate = v.bit, v.rate
		}
	}
	if bestRate == -1 {
		return minRate(variants, true)
	}
	return bestRate
}

// selectDouyuCDN picks requested (case-insensitive) if present in
// available, else the first available, else the normalized default.
func selectDouyuCDN(requested string, available []string) string {
	trimmed := strings.TrimSpace(requested)
	if trimmed != "" {
		lower := strings.ToLower(trimmed)
		for _, a := range available {
			if strings.ToLower(a) == lower {
				return a
			}
		}
	}
	if len(available) > 0 {
		return available[0]
	}
	return normalizeDouyuCDN(trimmed)
}

func normalizeDouyuCDN(input string) string {
	switch strings.ToLower(strings.TrimSpace(input)) {
	case "ws-h5":
		return "ws-h5"
	case "tct-h5":
		return "tct-h5"
	case "ali-h5":
		return "ali-h5"
	case "hs-h5":
		return "hs-h5"
	default:
		return "ws-h5"
	}
}
