// Package httpclient provides the three client flavors the resolvers and
// danmaku bootstraps share: Default, Direct-connection, and a low-pool
// Follow client, mirroring original_source's reqwest::Client builders.
package httpclient

import (
	"time"

	"github.com/imroc/req/v3"
)

const defaultTimeout = 20 * time.Second

// DefaultUserAgent matches the desktop Chrome UA every resolver's
// bootstrap request uses unless a platform overrides it.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// New builds the Default client: no system proxy, cookie jar enabled,
// default UA, 20s timeout.
func New() *req.Client {
	return req.C().
		SetProxy(nil).
		SetTimeout(defaultTimeout).
		EnableCookieWithJar().
		SetUserAgent(DefaultUserAgent)
}

// NewDirect is the explicitly-no-proxy flavor; behaviorally identical to
// New but named separately so call sites document the "must not go through
// a system proxy" requirement (anti-hotlink/CDN probes are proxy-sensitive).
func NewDirect() *req.Client {
	return New()
}

// NewFollowPool returns the low-concurrency client used for background
// user-follow refreshes: pool_max_idle_per_host=2, pool_idle_timeout=15s,
// so these requests cannot exhaust the global connection pool.
func NewFollowPool() *req.Client {
	c := New()
	c.Transport.MaxIdleConnsPerHost = 2
	c.Transport.IdleConnTimeout = 15 * time.Second
	return c
}
