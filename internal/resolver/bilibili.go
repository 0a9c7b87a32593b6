package resolver

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/imroc/req/v3"
	"github.com/tidwall/gjson"

	"github.com/christian-lee/streamcast/internal/model"
	"github.com/christian-lee/streamcast/internal/signing"
)

const maxHLSRetry = 3

// BilibiliResolver implements Resolver for Bilibili (spec §4.5 "Bilibili").
// WBI signing uses nav's img_key/sub_key pair, fetched from nav on every
// Resolve; the keys are not cached between calls.
type BilibiliResolver struct {
	Client *req.Client
}

func NewBilibiliResolver(client *req.Client) *BilibiliResolver {
	return &BilibiliResolver{Client: client}
}

func (r *BilibiliResolver) Resolve(ctx context.Context, request model.Request) (model.LiveStreamInfo, error) {
	roomID := strings.TrimSpace(request.RoomID)
	if roomID == "" {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: "房间ID未提供"}, nil
	}

	imgKey, subKey, err := r.fetchWbiKeys(ctx)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}

	firstInfo, err := r.requestPlayInfo(ctx, roomID, 0, imgKey, subKey)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}
	playurl := firstInfo.Get("data.playurl_info.playurl")
	qnMap := parseQNDescMap(playurl)
	selectedQN, selectedDesc := matchQN(qnMap, request.Quality)

	title, anchor, liveStatus, err := r.fetchRoomInit(ctx, roomID)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}
	if liveStatus != 1 {
		return model.LiveStreamInfo{
			Status:     model.StatusOffline,
			Title:      title,
			AnchorName: anchor,
		}, nil
	}

	url, streamType, variants, err := r.resolveStream(ctx, roomID, selectedQN, selectedDesc, imgKey, subKey)
	if err != nil {
		return model.LiveStreamInfo{Status: model.StatusError, ErrorMessage: err.Error()}, nil
	}
	if url == "" {
		return model.LiveStreamInfo{
			Status:           model.StatusError,
			Title:            title,
			AnchorName:       anchor,
			ErrorMessage:     "未找到可用的直播流地址",
			AvailableStreams: variants,
		}, nil
	}

	_ = streamType
	return model.LiveStreamInfo{
		Status:           model.StatusLive,
		Title:            title,
		AnchorName:       anchor,
		StreamURL:        url,
		UpstreamURL:      url,
		AvailableStreams: variants,
	}, nil
}

func (r *BilibiliResolver) fetchWbiKeys(ctx context.Context) (imgKey, subKey string, err error) {
	resp, err := r.Client.R().SetContext(ctx).Get("https://api.bilibili.com/x/web-interface/nav")
	if err != nil {
		return "", "", fmt.Errorf("network: %w", err)
	}
	body := resp.Bytes()
	imgURL := gjson.GetBytes(body, "data.wbi_img.img_url").String()
	subURL := gjson.GetBytes(body, "data.wbi_img.sub_url").String()
	imgKey = takeFilename(imgURL)
	subKey = takeFilename(subURL)
	if imgKey == "" || subKey == "" {
		return "", "", fmt.Errorf("api: missing wbi keys")
	}
	return imgKey, subKey, nil
}

func takeFilename(rawURL string) string {
	slash := strings.LastIndex(rawURL, "/")
	if slash < 0 {
		return ""
	}
	name := rawURL[slash+1:]
	dot := strings.LastIndex(name, ".")
	if dot < 0 {
		return name
	}
	return name[:dot]
}

func (r *BilibiliResolver) requestPlayInfo(ctx context.Context, roomID string, qn int, imgKey, subKey string) (gjson.Result, error) {
	params := map[string]string{
		"room_id":  roomID,
		"protocol": "0,1",
		"format":   "0,1,2",
		"codec":    "0",
		"platform": "html5",
		"dolby":    "5",
	}
	if qn > 0 {
		params["qn"] = strconv.Itoa(qn)
	}
	signed := signing.WbiSign(params, imgKey, subKey, time.Now())
	url := "https://api.live.bilibili.com/xlive/web-room/v2/index/getRoomPlayInfo?" + signed
	resp, err := r.Client.R().SetContext(ctx).Get(url)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("network: %w", err)
	}
	return gjson.ParseBytes(resp.Bytes()), nil
}

func (r *BilibiliResolver) fetchRoomInit(ctx context.Context, roomID string) (title, anchor string, liveStatus int64, err error) {
	url := "https://api.live.bilibili.com/room/v1/Room/room_init?id=" + roomID
	resp, e := r.Client.R().SetContext(ctx).Get(url)
	if e != nil {
		return "", "", 0, fmt.Errorf("network: %w", e)
	}
	body := resp.Bytes()
	title = gjson.GetBytes(body, "data.title").String()
	anchor = gjson.GetBytes(body, "data.uname").String()
	liveStatus = gjson.GetBytes(body, "data.live_status").Int()
	return title, anchor, liveStatus, nil
}

type qnDesc struct {
	qn   int
	desc string
}

func parseQNDescMap(playurl gjson.Result) []qnDesc {
	var out []qnDesc
	playurl.Get("g_qn_desc").ForEach(func(_, v gjson.Result) bool {
		out = append(out, qnDesc{qn: int(v.Get("qn").Int()), desc: v.Get("desc").String()})
		return true
	})
	return out
}

// matchQN implements the exact quality-selection table used by getRoomPlayInfo.
func matchQN(qnMap []qnDesc, quality string) (int, string) {
	if len(qnMap) == 0 {
		return 0, ""
	}
	qns := make([]int, len(qnMap))
	for i, e := range qnMap {
		qns[i] = e.qn
	}
	sort.Ints(qns)
	has := func(v int) bool {
		i := sort.SearchInts(qns, v)
		return i < len(qns) && qns[i] == v
	}
	descFor := func(qn int) string {
		for _, e := range qnMap {
			if e.qn == qn {
				return e.desc
			}
		}
		return ""
	}

	switch strings.TrimSpace(quality) {
	case "原画":
		if has(10000) {
			return 10000, descFor(10000)
		}
		if len(qns) > 0 {
			m := qns[len(qns)-1]
			return m, descFor(m)
		}
		return 0, ""
	case "高清":
		if has(400) {
			return 400, descFor(400)
		}
		for _, e := range qnMap {
			if strings.Contains(e.desc, "高清") || strings.Contains(e.desc, "超清") || strings.Contains(e.desc, "HD") {
				return e.qn, e.desc
			}
		}
		if len(qns) == 0 {
			return 0, ""
		}
		max := qns[len(qns)-1]
		for i := len(qns) - 1; i >= 0; i-- {
			if qns[i] < max {
				return qns[i], descFor(qns[i])
			}
		}
		return 0, ""
	case "标清":
		if has(250) {
			return 250, descFor(250)
		}
		for _, e := range qnMap {
			if strings.Contains(e.desc, "标清") || strings.Contains(e.desc, "流畅") || strings.Contains(e.desc, "SD") {
				return e.qn, e.desc
			}
		}
		if len(qns) == 0 {
			return 0, ""
		}
		return qns[0], descFor(qns[0])
	default:
		if len(qns) == 0 {
			return 0, ""
		}
		m := qns[len(qns)-1]
		return m, descFor(m)
	}
}

func isHLSFormat(name string) bool {
	switch name {
	case "ts", "fmp4", "mp4", "m4s", "m3u8":
		return true
	default:
		return false
	}
}

// parseStreamVariants walks playurl_info.playurl.stream[].format[].codec[].url_info[]
// the way bililive-go's gjson-based resolver does, composing host+base_url+extra.
func parseStreamVariants(playurl gjson.Result, selectedDesc string, selectedQN int) (variants []model.StreamVariant, flvCandidate string, hlsCandidates []string) {
	playurl.Get("stream").ForEach(func(_, streamItem gjson.Result) bool {
		protocolName := streamItem.Get("protocol_name").String()
		streamItem.Get("format").ForEach(func(_, formatItem gjson.Result) bool {
			formatName := formatItem.Get("format_name").String()
			formatItem.Get("codec").ForEach(func(_, codecItem gjson.Result) bool {
				baseURL := codecItem.Get("base_url").String()
				codecItem.Get("url_info").ForEach(func(_, ui gjson.Result) bool {
					host := ui.Get("host").String()
					extra := ui.Get("extra").String()
					composed := host + baseURL + extra
					if composed == "" {
						return true
					}
					variants = append(variants, model.StreamVariant{
						URL:      composed,
						Format:   model.StreamFormat(formatName),
						Desc:     selectedDesc,
						QN:       selectedQN,
						Protocol: protocolName,
					})
					if isHLSFormat(formatName) || strings.Contains(protocolName, "hls") {
						hlsCandidates = append(hlsCandidates, composed)
					}
					if formatName == "flv" && flvCandidate == "" {
						flvCandidate = composed
					}
					return true
				})
				return true
			})
			return true
		})
		return true
	})
	return variants, flvCandidate, hlsCandidates
}

func (r *BilibiliResolver) verifyHLSCandidates(ctx context.Context, candidates []string) string {
	limit := len(candidates)
	if limit > 4 {
		limit = 4
	}
	for _, candidate := range candidates[:limit] {
		resp, err := r.Client.R().SetContext(ctx).Get(candidate)
		if err == nil && resp.IsSuccessState() {
			return candidate
		}
	}
	return ""
}

// resolveStream runs up to maxHLSRetry+1 playinfo attempts, preferring an
// flv candidate immediately and otherwise probing HLS candidates split into
// "d1--cn" preferred and other CDN groups, matching the retry/fallback
// structure of getRoomPlayInfo's stream selection.
func (r *BilibiliResolver) resolveStream(ctx context.Context, roomID string, selectedQN int, selectedDesc, imgKey, subKey string) (string, model.StreamType, []model.StreamVariant, error) {
	var variantsForResponse []model.StreamVariant
	var fallbackHLSURL string
	var fallbackVariants []model.StreamVariant

	for attempt := 0; attempt <= maxHLSRetry; attempt++ {
		info, err := r.requestPlayInfo(ctx, roomID, selectedQN, imgKey, subKey)
		if err != nil {
			return "", model.StreamUnknown, nil, err
		}
		playurl := info.Get("data.playurl_info.playurl")
		variants, flvCandidate, hlsCandidates := parseStreamVariants(playurl, selectedDesc, selectedQN)
		variantsForResponse = variants

		if flvCandidate != "" {
			return flvCandidate, model.StreamFLV, variantsForResponse, nil
		}

		if len(hlsCandidates) == 0 {
			continue
		}

		var preferred, other []string
		for _, c := range hlsCandidates {
			if strings.Contains(c, "d1--cn") {
				preferred = append(preferred, c)
			} else {
				other = append(other, c)
			}
		}

		if url := r.verifyHLSCandidates(ctx, preferred); url != "" {
			return url, model.StreamHLS, variantsForResponse, nil
		}

		if fallbackHLSURL == "" {
			if url := r.verifyHLSCandidates(ctx, other); url != "" {
				fallbackHLSURL = url
				fallbackVariants = variants
			}
		}

		if attempt == maxHLSRetry {
			if fallbackHLSURL != "" {
				if fallbackVariants != nil {
					variantsForResponse = fallbackVariants
				}
				return fallbackHLSURL, model.StreamHLS, variantsForResponse, nil
			}
			if url := r.verifyHLSCandidates(ctx, other); url != "" {
				return url, model.StreamHLS, variantsForResponse, nil
			}
		}
	}

	if fallbackHLSURL != "" {
		if fallbackVariants != nil {
			variantsForResponse = fallbackVariants
		}
		return fallbackHLSURL, model.StreamHLS, variantsForResponse, nil
	}
	return "", model.StreamUnknown, variantsForResponse, nil
}
