package resolver

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"

	"github.com/christian-lee/streamcast/internal/model"
	"github.com/christian-lee/streamcast/internal/signing"
)

const (
	huyaIOSMobileUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 " +
		"(KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1"
	huyaDesktopUA = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:123.0) Gecko/20100101 Firefox/123.0"
	huyaCookie    = "huya_ua=webh5&0.1.0&websocket; guid=0a7df378828609654d01a205a305fb52"
)

// HuyaResolver implements Resolver for Huya (spec §4.5 "Huya").
type HuyaResolver struct {
	Client *req.Client
}

func NewHuyaResolver(client *req.Client) *HuyaResolver {
	return &HuyaResolver{Client: client}
}

type huyaStreamCandidate struct {
	baseFlv string
	cdn     string
}

func (r *HuyaResolver) Resolve(ctx context.Context, request model.Request) (model.LiveStreamInfo, error) {
	roomID := strings.TrimSpace(request.RoomID)
	if roomID == "" {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: "房间ID未提供"}, nil
	}

	title, nick, avatar, detailLive, err := r.fetchRoomDetail(ctx, roomID)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}

	candidates, err := r.fetchWebStreamData(ctx, roomID, false)
	if err != nil || len(candidates) == 0 {
		candidates, err = r.fetchWebStreamData(ctx, roomID, true)
		if err != nil {
			return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
		}
	}

	isLive := detailLive || len(candidates) > 0
	if !isLive {
		return model.LiveStreamInfo{
			Status:     model.StatusOffline,
			Title:      title,
			AnchorName: nick,
			Avatar:     avatar,
		}, nil
	}

	ratio := resolveHuyaRatio(request.Quality)
	preferredLine := normalizeHuyaLine(request.Line)
	index := 0
	if preferredLine != "" {
		for i, c := range candidates {
			if strings.EqualFold(c.cdn, preferredLine) {
				index = i
				break
			}
		}
	}
	if index >= len(candidates) {
		return model.LiveStreamInfo{
			Status:     model.StatusError,
			Title:      title,
			AnchorName: nick,
			Avatar:     avatar,
		}, nil
	}

	selected := candidates[index]
	selectedURL := adjustTXStreamURL(selected.baseFlv, selected.cdn)
	if ratio != 0 && isFLVURL(selectedURL) {
		selectedURL = fmt.Sprintf("%s&ratio=%d", selectedURL, ratio)
	}

	variants := buildHuyaVariants(selected)

	return model.LiveStreamInfo{
		Status:           model.StatusLive,
		Title:            title,
		AnchorName:       nick,
		Avatar:           avatar,
		StreamURL:        selectedURL,
		UpstreamURL:      selectedURL,
		AvailableStreams: variants,
	}, nil
}

func (r *HuyaResolver) fetchRoomDetail(ctx context.Context, roomID string) (title, nick, avatar string, live bool, err error) {
	apiURL := fmt.Sprintf("https://mp.huya.com/cache.php?m=Live&do=profileRoom&roomid=%s&showSecret=1", roomID)
	resp, e := r.Client.R().SetContext(ctx).
		SetHeader("Accept", "*/*").
		SetHeader("Origin", "https://m.huya.com").
		SetHeader("Referer", "https://m.huya.com/").
		SetHeader("User-Agent", huyaIOSMobileUA).
		Get(apiURL)
	if e != nil {
		return "", "", "", false, fmt.Errorf("network: %w", e)
	}
	body := resp.Bytes()
	if gjson.GetBytes(body, "status").Int() != 200 {
		return "", "", "", false, nil
	}
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return "", "", "", false, nil
	}
	streamOK := data.Get("stream").Exists()
	title = data.Get("liveData.introduction").String()
	nick = data.Get("liveData.nick").String()
	avatar = data.Get("liveData.avatar180").String()
	return title, nick, avatar, streamOK, nil
}

func (r *HuyaResolver) fetchWebStreamData(ctx context.Context, roomID string, mobile bool) ([]huyaStreamCandidate, error) {
	apiURL := "https://www.huya.com/" + roomID
	request := r.Client.R().SetContext(ctx).
		SetHeader("Accept-Language", "zh-CN,zh;q=0.8,zh-TW;q=0.7,zh-HK;q=0.5,en-US;q=0.3,en;q=0.2").
		SetHeader("Cookie", huyaCookie)
	if mobile {
		request.SetHeader("User-Agent", huyaIOSMobileUA).
			SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8").
			SetHeader("Referer", "https://m.huya.com/")
	} else {
		request.SetHeader("User-Agent", huyaDesktopUA).
			SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8").
			SetHeader("Referer", "https://www.huya.com/")
	}
	resp, err := request.Get(apiURL)
	if err != nil {
		return nil, fmt.Errorf("network: %w", err)
	}
	html := resp.String()

	fragment := extractHuyaStreamJSON(html)
	if fragment == "" {
		return nil, nil
	}
	value := gjson.Parse(fragment)
	streamInfoList := value.Get("data.0.gameStreamInfoList")
	if !streamInfoList.IsArray() {
		return nil, nil
	}

	type item struct {
		cdn, flvURL, streamName, flvSuffix, antiCode string
	}
	var items []item
	streamInfoList.ForEach(func(_, v gjson.Result) bool {
		items = append(items, item{
			cdn:        v.Get("sCdnType").String(),
			flvURL:     v.Get("sFlvUrl").String(),
			streamName: v.Get("sStreamName").String(),
			flvSuffix:  v.Get("sFlvUrlSuffix").String(),
			antiCode:   v.Get("sFlvAntiCode").String(),
		})
		return true
	})
	sort.SliceStable(items, func(i, j int) bool {
		return huyaCDNPriority(items[i].cdn) < huyaCDNPriority(items[j].cdn)
	})

	var candidates []huyaStreamCandidate
	for _, it := range items {
		if it.flvURL == "" || it.streamName == "" || it.flvSuffix == "" || it.antiCode == "" {
			continue
		}
		antiParams, err := generateWebAntiCode(it.streamName, it.antiCode)
		if err != nil {
			return nil, fmt.Errorf("api: %w", err)
		}
		baseFlv := enforceHuyaHTTPS(fmt.Sprintf("%s/%s.%s?%s", it.flvURL, it.streamName, it.flvSuffix, antiParams))
		candidates = append(candidates, huyaStreamCandidate{baseFlv: baseFlv, cdn: it.cdn})
	}

	return prioritizeHuyaCandidates(candidates), nil
}

// extractHuyaStreamJSON finds `stream:` in the page, then walks forward
// tracking brace depth to find the matching closing brace — a
// balanced-brace extractor replacing the fragile lazy regex the original
// client used (regexes can't correctly match nested braces).
func extractHuyaStreamJSON(html string) string {
	marker := "stream:"
	idx := strings.Index(html, marker)
	if idx < 0 {
		return ""
	}
	rest := html[idx+len(marker):]
	start := strings.IndexByte(rest, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(rest); i++ {
		c := rest[i]
		if inString {
			if escaped {
				escaped = false
			} else if c == '\\' {
				escaped = true
			} else if c == '"' {
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return rest[start : i+1]
			}
		}
	}
	return ""
}

func huyaCDNPriority(cdn string) int {
	switch strings.ToLower(cdn) {
	case "tx":
		return 0
	case "al":
		return 1
	case "hs":
		return 2
	default:
		return 3
	}
}

func isFLVURL(u string) bool {
	return strings.Contains(strings.ToLower(u), ".flv")
}

func enforceHuyaHTTPS(u string) string {
	if strings.HasPrefix(u, "https://") {
		return u
	}
	if strings.HasPrefix(u, "http://") {
		return "https://" + u[len("http://"):]
	}
	return u
}

func adjustTXStreamURL(u, cdn string) string {
	if strings.EqualFold(cdn, "tx") {
		replaced := strings.ReplaceAll(u, "&ctype=tars_mp", "&ctype=huya_webh5")
		replaced = strings.ReplaceAll(replaced, "&fs=bhct", "&fs=bgct")
		return enforceHuyaHTTPS(replaced)
	}
	return enforceHuyaHTTPS(u)
}

func normalizeHuyaLine(input string) string {
	lower := strings.ToLower(strings.TrimSpace(input))
	switch lower {
	case "tx", "al", "hs":
		return lower
	default:
		return ""
	}
}

func prioritizeHuyaCandidates(candidates []huyaStreamCandidate) []huyaStreamCandidate {
	if len(candidates) == 0 {
		return candidates
	}
	var huyaDomain, otherFLV, remaining []huyaStreamCandidate
	for _, c := range candidates {
		lower := strings.ToLower(c.baseFlv)
		hasHuya := strings.Contains(lower, "huya.com")
		flv := strings.Contains(lower, ".flv")
		switch {
		case hasHuya && flv:
			huyaDomain = append(huyaDomain, c)
		case flv:
			otherFLV = append(otherFLV, c)
		default:
			remaining = append(remaining, c)
		}
	}
	if len(huyaDomain) > 0 {
		return append(append(huyaDomain, otherFLV...), remaining...)
	}
	if len(otherFLV) > 0 {
		return append(otherFLV, remaining...)
	}
	return remaining
}

// resolveHuyaRatio maps a requested quality tag to Huya's bitrate ratio
// parameter: 0 means "no ratio override" (original quality).
func resolveHuyaRatio(quality string) int {
	trimmed := strings.TrimSpace(quality)
	lower := strings.ToLower(trimmed)
	switch {
	case strings.Contains(trimmed, "标清") || lower == "sd" || lower == "ld" || lower == "2000":
		return 2000
	case strings.Contains(trimmed, "高清") || lower == "hd" || lower == "4000":
		return 4000
	case strings.Contains(trimmed, "原画") || lower == "source" || lower == "uhd":
		return 0
	case trimmed == "":
		return 0
	default:
		return 4000
	}
}

func buildHuyaVariants(c huyaStreamCandidate) []model.StreamVariant {
	adjusted := adjustTXStreamURL(c.baseFlv, c.cdn)
	variants := []model.StreamVariant{
		{URL: adjusted, Format: model.FormatFLV, Desc: "原画", Protocol: c.cdn},
	}
	if isFLVURL(adjusted) {
		variants = append(variants,
			model.StreamVariant{URL: fmt.Sprintf("%s&ratio=%d", adjusted, 4000), Format: model.FormatFLV, Desc: "高清", Protocol: c.cdn},
			model.StreamVariant{URL: fmt.Sprintf("%s&ratio=%d", adjusted, 2000), Format: model.FormatFLV, Desc: "标清", Protocol: c.cdn},
		)
	}
	return variants
}

// generateWebAntiCode ports the wsSecret/wsTime anti-hotlink token
// derivation: decode the fm field to recover the wsSecret prefix, then hash
// a seqid/ctype/t triple and a second plaintext combining prefix, uid,
// stream name, and the first hash, to produce wsSecret.
func generateWebAntiCode(streamName, antiCode string) (string, error) {
	sanitized := strings.ReplaceAll(antiCode, "&amp;", "&")
	trimmed := strings.TrimLeft(sanitized, "?&")
	values, err := url.ParseQuery(trimmed)
	if err != nil {
		return "", fmt.Errorf("failed to parse anti code: %w", err)
	}

	fmValue := values.Get("fm")
	ctype := values.Get("ctype")
	fs := values.Get("fs")
	if fmValue == "" {
		return "", fmt.Errorf("missing fm in anti code")
	}
	if ctype == "" {
		return "", fmt.Errorf("missing ctype in anti code")
	}
	if fs == "" {
		return "", fmt.Errorf("missing fs in anti code")
	}

	fmDecoded, err := url.QueryUnescape(fmValue)
	if err != nil {
		return "", fmt.Errorf("failed to url-decode fm")
	}
	fmBytes, err := signing.Base64StdDecode(fmDecoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode fm base64")
	}
	fmPlain := string(fmBytes)
	wsPrefix := fmPlain
	if idx := strings.Index(fmPlain, "_"); idx >= 0 {
		wsPrefix = fmPlain[:idx]
	}
	if wsPrefix == "" {
		return "", fmt.Errorf("failed to derive wsSecret prefix")
	}

	const paramsT = 100
	const sdkVersion = 2403051612
	t13 := time.Now().UnixMilli()
	sdkSid := t13

	uid := int64(1_400_000_000_000) + rand.Int63n(10_000_000_000)
	seqID := uid + sdkSid

	wsTime := strconv.FormatInt((t13+110_624)/1000, 16)

	uuidSeed := (t13%10_000_000_000)*1000 + rand.Int63n(1000)
	initUUID := uuidSeed % 4_294_967_295

	wsSecretHash := signing.MD5Hex(fmt.Sprintf("%d|%s|%d", seqID, ctype, paramsT))
	wsSecretPlain := fmt.Sprintf("%s_%d_%s_%s_%s", wsPrefix, uid, streamName, wsSecretHash, wsTime)
	wsSecretMD5 := signing.MD5Hex(wsSecretPlain)

	pairs := [][2]string{
		{"wsSecret", wsSecretMD5},
		{"wsTime", wsTime},
		{"seqid", strconv.FormatInt(seqID, 10)},
		{"ctype", ctype},
		{"ver", "1"},
		{"fs", fs},
		{"uuid", strconv.FormatInt(initUUID, 10)},
		{"u", strconv.FormatInt(uid, 10)},
		{"t", strconv.Itoa(paramsT)},
		{"sv", strconv.Itoa(sdkVersion)},
		{"sdk_sid", strconv.FormatInt(sdkSid, 10)},
		{"codec", "264"},
	}
	var b strings.Builder
	for i, p := range pairs {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(p[0])
		b.WriteByte('=')
		b.WriteString(p[1])
	}
	return b.String(), nil
}
