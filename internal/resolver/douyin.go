package resolver

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"

	"github.com/christian-lee/streamcast/internal/model"
	"github.com/christian-lee/streamcast/internal/signing"
)

// DouyinUA matches the douyin_rust reference sample; a_bogus inputs are
// sensitive to the exact UA string used to sign the request.
const DouyinUA = "Mozilla/5.0 (Windows NT 10.0; WOW64) AppleWebKit/537.36 (KHTML, like Gecko) " +
	"Chrome/116.0.5845.97 Safari/537.36 Core/1.116.567.400 QQBrowser/19.7.6764.400"

const douyinDefaultCookie = "ttwid=1%7C2iDIYVmjzMcpZ20fcaFde0VghXAA3NaNXE_SLR68IyE%7C1761045455" +
	"%7Cab35197d5cfb21df6cbb2fa7ef1c9262206b062c315b9d04da746d0b37dfbc7d"

var originFLVPattern = regexp.MustCompile(`https?://[^"'\s]*stream-\d+\.flv[^"'\s]*`)

// DouyinResolver implements Resolver for Douyin (spec §4.5 "Douyin").
type DouyinResolver struct {
	Client *req.Client
}

func NewDouyinResolver(client *req.Client) *DouyinResolver {
	return &DouyinResolver{Client: client}
}

func (r *DouyinResolver) Resolve(ctx context.Context, request model.Request) (model.LiveStreamInfo, error) {
	requested := strings.TrimSpace(request.RoomID)
	if requested == "" {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: "Douyin web_id cannot be empty."}, nil
	}

	webID := NormalizeDouyinLiveID(requested)
	cookie := request.Cookie
	if cookie == "" {
		cookie = douyinDefaultCookie
	}

	room, anchorName, err := r.fetchRoom(ctx, webID, cookie)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}

	originOverride := r.fetchOriginFLVFromLivePage(ctx, webID)

	webRid := extractDouyinWebRid(room)
	if webRid == "" {
		webRid = webID
	}
	title := gjson.GetBytes(room, "title").String()
	anchor := extractDouyinAnchorName(room, anchorName)
	avatar := extractDouyinAvatar(room)
	status := gjson.GetBytes(room, "status").Int()
	variants := collectDouyinVariants(room, originOverride)

	if status != 2 {
		return model.LiveStreamInfo{
			Status:           model.StatusOffline,
			Title:            title,
			AnchorName:       anchor,
			Avatar:           avatar,
			AvailableStreams: variants,
			WebRid:           webRid,
		}, nil
	}

	targetQuality := normalizeDouyinQualityTag(request.Quality)
	_, url := pickDouyinFLVByQuality(room, targetQuality, originOverride)
	if url == "" {
		_, url = chooseDouyinFLVStream(room, targetQuality)
	}
	if url == "" {
		_, url = firstDouyinFLVStream(room)
	}
	if url == "" {
		return model.LiveStreamInfo{
			Status:           model.StatusError,
			Title:            title,
			AnchorName:       anchor,
			Avatar:           avatar,
			ErrorMessage:     "No FLV streams available in stream_url.flv_pull_url",
			AvailableStreams: variants,
			WebRid:           webRid,
		}, nil
	}
	url = enforceDouyinHTTPS(url)

	return model.LiveStreamInfo{
		Status:           model.StatusLive,
		Title:            title,
		AnchorName:       anchor,
		Avatar:           avatar,
		StreamURL:        url,
		UpstreamURL:      url,
		AvailableStreams: variants,
		WebRid:           webRid,
	}, nil
}

func (r *DouyinResolver) fetchRoom(ctx context.Context, webID, cookie string) (room []byte, anchorName string, err error) {
	params := map[string]string{
		"aid":              "6383",
		"app_name":         "douyin_web",
		"live_id":          "1",
		"device_platform":  "web",
		"language":         "zh-CN",
		"browser_language": "zh-CN",
		"browser_platform": "Win32",
		"browser_name":     "Chrome",
		"browser_version":  "116.0.0.0",
		"web_rid":          webID,
		"msToken":          "",
	}
	query := signing.CanonicalQuery(params)
	abogus := signing.GenerateABogus(query, DouyinUA, time.Now().UnixMilli())
	apiURL := "https://live.douyin.com/webcast/room/web/enter/?" + query + "&a_bogus=" + abogus

	resp, e := r.Client.R().SetContext(ctx).
		SetHeader("User-Agent", DouyinUA).
		SetHeader("Referer", "https://live.douyin.com/"+webID).
		SetHeader("Accept-Encoding", "identity").
		SetHeader("Cookie", cookie).
		Get(apiURL)
	if e != nil {
		return nil, "", fmt.Errorf("network: %w", e)
	}
	body := resp.Bytes()
	roomResult := gjson.GetBytes(body, "data.data.0")
	if !roomResult.Exists() {
		return nil, "", fmt.Errorf("api: Douyin web enter API did not return room data")
	}
	anchorName = gjson.GetBytes(body, "data.user.nickname").String()
	return []byte(roomResult.Raw), anchorName, nil
}

func (r *DouyinResolver) fetchOriginFLVFromLivePage(ctx context.Context, webID string) string {
	url := "https://live.douyin.com/" + webID
	resp, err := r.Client.R().SetContext(ctx).
		SetHeader("User-Agent", DouyinUA).
		SetHeader("Referer", url).
		Get(url)
	if err != nil {
		return ""
	}
	return extractOriginFLVFromHTML(resp.String())
}

func extractOriginFLVFromHTML(html string) string {
	for _, m := range originFLVPattern.FindAllString(html, -1) {
		u := unescapeJSEscapes(m)
		u = strings.ReplaceAll(u, "&amp;", "&")
		host := ""
		if idx := strings.Index(u, "://"); idx >= 0 {
			rest := u[idx+3:]
			if slash := strings.Index(rest, "/"); slash >= 0 {
				host = rest[:slash]
			} else {
				host = rest
			}
		}
		if !strings.Contains(u, "_uhd.flv") && !strings.Contains(u, "only_audio=1") &&
			!strings.Contains(u, "pull-hs") && !strings.Contains(u, "wsSecret") && strings.Contains(host, "flv") {
			return u
		}
	}
	return ""
}

func unescapeJSEscapes(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == '\\' && i+1 < len(runes) {
			switch runes[i+1] {
			case 'u':
				if i+6 <= len(runes) {
					hex := string(runes[i+2 : i+6])
					var code int
					if _, err := fmt.Sscanf(hex, "%04x", &code); err == nil {
						b.WriteRune(rune(code))
						i += 5
						continue
					}
				}
				b.WriteRune('\\')
			case '/':
				b.WriteRune('/')
				i++
			case '\\':
				b.WriteRune('\\')
				i++
			case '"':
				b.WriteRune('"')
				i++
			case '\'':
				b.WriteRune('\'')
				i++
			case 'n':
				b.WriteRune('\n')
				i++
			case 'r':
				b.WriteRune('\r')
				i++
			case 't':
				b.WriteRune('\t')
				i++
			default:
				b.WriteRune(runes[i])
			}
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// extractOriginStreamURLs recovers the ORIGIN flv/hls URLs embedded in
// live_core_sdk_data's stream_data JSON, the way douyin_rust does before
// falling back to HTML scraping.
func extractOriginStreamURLs(room []byte) (flvURL, hlsURL string) {
	sdkData := gjson.GetBytes(room, "stream_url.live_core_sdk_data")
	if !sdkData.Exists() {
		return "", ""
	}
	var jsonStr string
	pullDatas := gjson.GetBytes(room, "stream_url.pull_datas")
	if pullDatas.IsObject() {
		pullDatas.ForEach(func(_, v gjson.Result) bool {
			jsonStr = v.Get("stream_data").String()
			return false
		})
	}
	if jsonStr == "" {
		jsonStr = sdkData.Get("pull_data.stream_data").String()
	}
	if jsonStr == "" {
		return "", ""
	}
	parsed := gjson.Parse(jsonStr)
	originMain := parsed.Get("data.origin.main")
	if !originMain.Exists() {
		return "", ""
	}
	codec := gjson.Parse(originMain.Get("sdk_params").String()).Get("VCodec").String()
	if hls := originMain.Get("hls").String(); hls != "" {
		hlsURL = hls + "&codec=" + codec
	}
	if flv := originMain.Get("flv").String(); flv != "" {
		flvURL = flv + "&codec=" + codec
	}
	return flvURL, hlsURL
}

// NormalizeDouyinLiveID accepts raw IDs and full URLs such as
// "https://live.douyin.com/123456" or "https://www.douyin.com/follow/live/123456".
func NormalizeDouyinLiveID(input string) string {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return ""
	}

	if qpos := strings.Index(trimmed, "?"); qpos >= 0 {
		query := trimmed[qpos+1:]
		for _, kv := range strings.Split(query, "&") {
			for _, prefix := range []string{"room_id=", "roomId=", "web_rid=", "webId="} {
				if strings.HasPrefix(kv, prefix) {
					val := kv[len(prefix):]
					cleaned := firstNonEmptySplit(val, "&#")
					if cleaned != "" {
						return cleaned
					}
				}
			}
		}
	}

	if pos := strings.Index(trimmed, "douyin.com/"); pos >= 0 {
		start := pos + len("douyin.com/")
		remainder := trimmed[start:]
		pathOnly := firstSplit(remainder, "?#")
		if seg := lastNonEmptySegment(pathOnly); seg != "" {
			return firstNonEmptySplit(seg, "?&#")
		}
	}

	return firstNonEmptySplit(trimmed, "?&#")
}

func firstSplit(s, cutset string) string {
	if i := strings.IndexAny(s, cutset); i >= 0 {
		return s[:i]
	}
	return s
}

func firstNonEmptySplit(s, cutset string) string {
	for _, part := range strings.FieldsFunc(s, func(r rune) bool { return strings.ContainsRune(cutset, r) }) {
		if part != "" {
			return part
		}
	}
	return s
}

func lastNonEmptySegment(path string) string {
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

func extractDouyinWebRid(room []byte) string {
	if v := gjson.GetBytes(room, "owner.web_rid").String(); v != "" {
		return v
	}
	if v := gjson.GetBytes(room, "anchor.web_rid").String(); v != "" {
		return v
	}
	return gjson.GetBytes(room, "web_rid").String()
}

func extractDouyinAnchorName(room []byte, fallback string) string {
	if v := gjson.GetBytes(room, "anchor_name").String(); v != "" {
		return v
	}
	if v := gjson.GetBytes(room, "owner.nickname").String(); v != "" {
		return v
	}
	if v := gjson.GetBytes(room, "anchor.nickname").String(); v != "" {
		return v
	}
	return fallback
}

func extractDouyinAvatar(room []byte) string {
	if v := gjson.GetBytes(room, "owner.avatar_thumb.url_list.0").String(); v != "" {
		return v
	}
	return gjson.GetBytes(room, "anchor.avatar_thumb.url_list.0").String()
}

func collectDouyinVariants(room []byte, originOverride string) []model.StreamVariant {
	var variants []model.StreamVariant
	flvOrigin, _ := extractOriginStreamURLs(room)
	if flvOrigin == "" {
		flvOrigin = originOverride
	}
	if flvOrigin != "" {
		variants = append(variants, model.StreamVariant{URL: flvOrigin, Format: model.FormatFLV, Desc: "ORIGIN", Protocol: "https"})
	}
	gjson.GetBytes(room, "stream_url.flv_pull_url").ForEach(func(k, v gjson.Result) bool {
		url := v.String()
		if url == "" {
			return true
		}
		protocol := ""
		if idx := strings.Index(url, ":"); idx > 0 {
			protocol = url[:idx]
		}
		variants = append(variants, model.StreamVariant{URL: url, Format: model.FormatFLV, Desc: k.String(), Protocol: protocol})
		return true
	})
	return variants
}

func normalizeDouyinQualityTag(input string) string {
	switch strings.ToUpper(strings.TrimSpace(input)) {
	case "OD":
		return "OD"
	case "BD":
		return "BD"
	case "UHD":
		return "UHD"
	default:
		return "OD"
	}
}

// pickDouyinFLVByQuality implements the exact OD/UHD/BD fallback table:
// OD prefers the (possibly HTML-recovered) ORIGIN stream, UHD prefers
// FULL_HD1 when ORIGIN exists else HD1, BD prefers HD1 else SD1/SD2.
func pickDouyinFLVByQuality(room []byte, targetQuality, originOverride string) (key, url string) {
	flvPullURL := gjson.GetBytes(room, "stream_url.flv_pull_url")
	getFlv := func(name string) string { return flvPullURL.Get(name).String() }

	originURL := originOverride
	if originURL == "" {
		originURL = getFlv("ORIGIN")
	}
	fullHD1 := getFlv("FULL_HD1")
	hd1 := getFlv("HD1")
	sdFallback := getFlv("SD1")
	if sdFallback == "" {
		sdFallback = getFlv("SD2")
	}

	switch targetQuality {
	case "OD":
		if originURL != "" {
			return "ORIGIN", originURL
		}
		if fullHD1 != "" {
			return "FULL_HD1", fullHD1
		}
	case "UHD":
		if originURL != "" {
			if fullHD1 != "" {
				return "FULL_HD1", fullHD1
			}
		} else if hd1 != "" {
			return "HD1", hd1
		}
	case "BD":
		if hd1 != "" {
			return "HD1", hd1
		}
		if sdFallback != "" {
			return "SD1", sdFallback
		}
	}
	return "", ""
}

func chooseDouyinFLVStream(room []byte, desiredQuality string) (key, url string) {
	qualityOrder := []string{"OD", "BD", "UHD", "HD", "SD", "LD"}
	type entry struct{ key, url string }
	var entries []entry
	gjson.GetBytes(room, "stream_url.flv_pull_url").ForEach(func(k, v gjson.Result) bool {
		if v.String() != "" {
			entries = append(entries, entry{key: k.String(), url: v.String()})
		}
		return true
	})
	if len(entries) == 0 {
		return "", ""
	}
	for len(entries) < len(qualityOrder) {
		entries = append(entries, entries[len(entries)-1])
	}
	desired := strings.ToUpper(strings.TrimSpace(desiredQuality))
	idx := 0
	for i, q := range qualityOrder {
		if q == desired {
			idx = i
			break
		}
	}
	if idx < len(entries) {
		return entries[idx].key, entries[idx].url
	}
	last := entries[len(entries)-1]
	return last.key, last.url
}

func firstDouyinFLVStream(room []byte) (key, url string) {
	result := ""
	resultKey := ""
	gjson.GetBytes(room, "stream_url.flv_pull_url").ForEach(func(k, v gjson.Result) bool {
		if v.String() != "" {
			resultKey, result = k.String(), v.String()
			return false
		}
		return true
	})
	return resultKey, result
}

func enforceDouyinHTTPS(url string) string {
	if strings.HasPrefix(url, "https://") {
		return url
	}
	if strings.HasPrefix(url, "http://") {
		return "https://" + url[len("http://"):]
	}
	return url
}
