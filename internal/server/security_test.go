package server

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/le-stef/pendulum/internal/ntperrors"
)

func udpAddr(ip string) *net.UDPAddr {
	return &net.UDPAddr{IP: net.ParseIP(ip), Port: 12345}
}

func TestSecurityRejectsOversizedPacket(t *testing.T) {
	s := newSecurity(SecurityConfig{})
	err := s.check(udpAddr("10.0.0.1"), maxPacketBytes+1, time.Now())
	assert.ErrorIs(t, err, ntperrors.ErrOversized)
}

func TestSecurityAllowsPlainRequest(t *testing.T) {
	s := newSecurity(SecurityConfig{})
	err := s.check(udpAddr("10.0.0.1"), 48, time.Now())
	assert.NoError(t, err)
}

func TestSecurityWhitelistRejectsUnlisted(t *testing.T) {
	s := newSecurity(SecurityConfig{IPWhitelist: []string{"10.0.0.1"}})
	err := s.check(udpAddr("10.0.0.2"), 48, time.Now())
	assert.ErrorIs(t, err, ntperrors.ErrNotWhitelisted)
}

func TestSecurityWhitelistAllowsListed(t *testing.T) {
	s := newSecurity(SecurityConfig{IPWhitelist: []string{"10.0.0.1"}})
	err := s.check(udpAddr("10.0.0.1"), 48, time.Now())
	assert.NoError(t, err)
}

func TestSecurityBlacklistRejectsListed(t *testing.T) {
	s := newSecurity(SecurityConfig{IPBlacklist: []string{"10.0.0.1"}})
	err := s.check(udpAddr("10.0.0.1"), 48, time.Now())
	assert.ErrorIs(t, err, ntperrors.ErrBlacklisted)
}

func TestSecurityWhitelistTakesPrecedenceOverBlacklist(t *testing.T) {
	s := newSecurity(SecurityConfig{
		IPWhitelist: []string{"10.0.0.1"},
		IPBlacklist: []string{"10.0.0.1"},
	})
	err := s.check(udpAddr("10.0.0.1"), 48, time.Now())
	assert.NoError(t, err)
}

func TestSecurityRateLimitRejectsOverQuota(t *testing.T) {
	s := newSecurity(SecurityConfig{EnableRateLimiting: true, MaxRequestsPerSecond: 1})
	now := time.Now()

	assert.NoError(t, s.check(udpAddr("10.0.0.9"), 48, now))
	err := s.check(udpAddr("10.0.0.9"), 48, now)
	assert.ErrorIs(t, err, ntperrors.ErrRateLimited)
}
