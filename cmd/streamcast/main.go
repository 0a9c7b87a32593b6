package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/imroc/req/v3"

	"github.com/christian-lee/streamcast/internal/config"
	"github.com/christian-lee/streamcast/internal/danmaku"
	"github.com/christian-lee/streamcast/internal/httpclient"
	"github.com/christian-lee/streamcast/internal/jsworker"
	"github.com/christian-lee/streamcast/internal/model"
	"github.com/christian-lee/streamcast/internal/proxy"
	"github.com/christian-lee/streamcast/internal/resolver"
	"github.com/christian-lee/streamcast/internal/service"
	"github.com/christian-lee/streamcast/internal/session"
)

func main() {
	debug := os.Getenv("DTV_DEBUG") == "1" || os.Getenv("DMF_DEBUG") == "1"
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	if len(os.Args) < 2 {
		fmt.Println("Usage:")
		fmt.Println("  streamcast run [config]   Start resolving, proxying, and subscribing to configured rooms")
		os.Exit(1)
	}

	switch os.Args[1] {
	case "run":
		cfgPath := "config.yaml"
		if len(os.Args) > 2 {
			cfgPath = os.Args[2]
		}
		if err := run(cfgPath); err != nil {
			slog.Error("run failed", "err", err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}
}

func run(cfgPath string) error {
	hotCfg, err := config.NewHotConfig(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg := hotCfg.Get()
	hotCfg.Watch()

	if len(cfg.Rooms) == 0 {
		return fmt.Errorf("no rooms configured")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("shutting down...")
		cancel()
	}()

	client := httpclient.New()

	douyuJS := jsworker.New(httpclient.DefaultUserAgent, []jsworker.Script{
		{Name: "cryptojs.min.js", Source: jsworker.CryptoJSSource},
	})
	douyinJS := jsworker.New(httpclient.DefaultUserAgent, []jsworker.Script{
		{Name: "sign.js", Source: jsworker.SignJSSource},
	})
	if err := douyuJS.WaitReady(); err != nil {
		return fmt.Errorf("douyu js worker bootstrap: %w", err)
	}
	if err := douyinJS.WaitReady(); err != nil {
		return fmt.Errorf("douyin js worker bootstrap: %w", err)
	}

	resolvers := map[model.Platform]resolver.Resolver{
		model.Douyu:    resolver.NewDouyuResolver(client, douyuJS),
		model.Bilibili: resolver.NewBilibiliResolver(client),
		model.Douyin:   resolver.NewDouyinResolver(client),
		model.Huya:     resolver.NewHuyaResolver(client),
	}

	store := session.New()
	proxyPort := cfg.ProxyPort
	svc := service.New(resolvers, store, func(platform model.Platform, roomID string) string {
		return fmt.Sprintf("http://127.0.0.1:%d/live/%s/%s.flv", proxyPort, platform, roomID)
	})

	proxySrv := proxy.New(store)
	go func() {
		if err := proxySrv.Serve(fmt.Sprintf("127.0.0.1:%d", cfg.ProxyPort)); err != nil {
			slog.Error("proxy server stopped", "err", err)
		}
	}()
	go func() {
		if err := proxySrv.Serve(fmt.Sprintf("127.0.0.1:%d", cfg.ImagePort)); err != nil {
			slog.Error("image proxy server stopped", "err", err)
		}
	}()

	sink := &logSink{}

	for _, room := range cfg.Rooms {
		resp := svc.GetLiveStream(ctx, model.Request{
			Platform: model.Platform(room.Platform),
			RoomID:   room.RoomID,
			Quality:  room.Quality,
			Line:     room.Line,
			Cookie:   room.Cookie,
			Debug:    cfg.Debug,
			Mode:     model.ModePlayback,
		})
		slog.Info("resolved room", "platform", room.Platform, "room_id", room.RoomID, "status", resp.Status)

		if room.Danmaku {
			startDanmaku(ctx, room, client, douyinJS, sink)
		}
	}

	<-ctx.Done()
	return nil
}

// logSink is the minimal Sink that logs normalized events; a real
// deployment swaps this for whatever its own event pipeline needs.
type logSink struct{}

func (s *logSink) Emit(eventName string, payload any) {
	slog.Debug("danmaku event", "event", eventName)
}

func (s *logSink) OnDanmaku(event model.DanmakuEvent) {
	slog.Info("danmaku", "room_id", event.RoomID, "user", event.User, "content", event.Content)
}

func startDanmaku(ctx context.Context, room config.RoomConfig, client *req.Client, douyinJS *jsworker.Worker, sink danmaku.Sink) {
	var client2 danmaku.Client
	switch model.Platform(room.Platform) {
	case model.Douyu:
		client2 = danmaku.NewDouyuClient(room.RoomID)
	case model.Bilibili:
		client2 = danmaku.NewBilibiliClient(room.RoomID, client)
	case model.Douyin:
		client2 = danmaku.NewDouyinClient(room.RoomID, client, douyinJS)
	case model.Huya:
		client2 = danmaku.NewHuyaClient(room.RoomID, client)
	default:
		slog.Warn("danmaku unsupported for platform", "platform", room.Platform)
		return
	}

	stop := make(chan struct{})
	go danmaku.RunSession(ctx, fmt.Sprintf("%s/%s", room.Platform, room.RoomID), client2, sink, stop)
}
