package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	logx "github.com/wapuda/tgcourier/internal/logs"
)

func keyRate(ip string, window int64) string {
	return fmt.Sprintf("rate:%s:%d", ip, window)
}

// rateLimit is a fixed-window counter per client IP, backed by Redis so the
// limit holds across restarts. Redis being unreachable fails open: an
// unavailable limiter should not take the pipeline down with it.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	if s.rdb == nil || s.cfg.RateMax <= 0 {
		return next
	}
	windowSec := int64(s.cfg.RateWindow / time.Second)
	if windowSec < 1 {
		windowSec = 1
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		key := keyRate(ip, time.Now().Unix()/windowSec)
		n, err := s.rdb.Incr(r.Context(), key).Result()
		if err != nil {
			l := logx.FromCtx(r.Context())
			l.Warn().Err(err).Msg("rate limiter unavailable; allowing request")
			next.ServeHTTP(w, r)
			return
		}
		if n == 1 {
			_ = s.rdb.Expire(r.Context(), key, s.cfg.RateWindow).Err()
		}
		if n > int64(s.cfg.RateMax) {
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
