package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rvald/veloguard/internal/config"
	"github.com/rvald/veloguard/internal/listener"
	"github.com/rvald/veloguard/internal/ratelimit"
	"github.com/rvald/veloguard/internal/token"
)

func TestReloadHook_AppliesListenerSettings(t *testing.T) {
	limiter := ratelimit.New(5, time.Minute)
	l := listener.New(token.NewStore(nil), listener.Config{
		Messages:        listener.DefaultMessages(),
		ExtraProtection: true,
		Limiter:         limiter,
	})

	next := config.Default()
	next.Messages.InvalidToken = "go away"
	next.ExtraProtection = false
	next.LogRateLimit = config.RateLimitConfig{Limit: 2, Interval: 10 * time.Second}

	var reported int
	reloadHook(l, limiter, func(n int) { reported = n })(next, 7)

	assert.Equal(t, 7, reported)
	assert.Equal(t, "go away", l.Messages().InvalidToken)
	assert.Equal(t, 2, limiter.Limit())
	assert.Equal(t, 10*time.Second, limiter.Interval())
	assert.True(t, l.OnLogin(nopLogin{}), "extra protection turned off")
}

type nopLogin struct{}

func (nopLogin) Session() listener.Attributes { return nil }
func (nopLogin) Disallow(string)              {}
