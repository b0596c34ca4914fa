package server

import (
	"net"
	"time"

	"github.com/le-stef/pendulum/internal/ntperrors"
)

// SecurityConfig mirrors the security.* section of the configuration file.
type SecurityConfig struct {
	EnableRateLimiting   bool
	MaxRequestsPerSecond float64
	IPWhitelist          []string
	IPBlacklist          []string
}

// security applies the whitelist/blacklist/rate-limit/size gate ahead of
// decode. Every rejection is silent at the wire; the caller is
// responsible for counting it.
type security struct {
	whitelist map[string]struct{}
	blacklist map[string]struct{}
	limiter   *rateLimiter
	rlEnabled bool
}

func newSecurity(cfg SecurityConfig) *security {
	s := &security{rlEnabled: cfg.EnableRateLimiting}
	if len(cfg.IPWhitelist) > 0 {
		s.whitelist = toSet(cfg.IPWhitelist)
	}
	if len(cfg.IPBlacklist) > 0 {
		s.blacklist = toSet(cfg.IPBlacklist)
	}
	if cfg.EnableRateLimiting {
		s.limiter = newRateLimiter(cfg.MaxRequestsPerSecond)
	}
	return s
}

func toSet(ips []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ips))
	for _, ip := range ips {
		set[ip] = struct{}{}
	}
	return set
}

// check runs the peer and size gates, returning the sentinel error that
// describes the rejection reason, or nil to proceed to decode.
func (s *security) check(peer *net.UDPAddr, n int, now time.Time) error {
	if n > maxPacketBytes {
		return ntperrors.ErrOversized
	}

	ipStr := peer.IP.String()

	if s.whitelist != nil {
		if _, ok := s.whitelist[ipStr]; !ok {
			return ntperrors.ErrNotWhitelisted
		}
	} else if s.blacklist != nil {
		if _, ok := s.blacklist[ipStr]; ok {
			return ntperrors.ErrBlacklisted
		}
	}

	if s.rlEnabled {
		if !s.limiter.allow(peer.IP, now) {
			return ntperrors.ErrRateLimited
		}
	}

	return nil
}
