package ratelimit

import (
	"context"

	"go.uber.org/zap"
)

const (
	// Redemption attempts per client IP. Codes live in a 36^8 keyspace, so
	// online guessing is hopeless at this rate; the limit mainly absorbs
	// abusive clients without bothering legitimate ones.
	redeemRate  = 1.0
	redeemBurst = 10
)

// RedeemLimiter throttles invite redemption attempts per client IP.
// It fails open: when redis is unavailable the attempt is allowed, since
// the conditional write in the store still guarantees at-most-once.
type RedeemLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
}

func NewRedeemLimiter(bucket *TokenBucket, log *zap.Logger) *RedeemLimiter {
	return &RedeemLimiter{
		bucket: bucket,
		log:    log.Named("ratelimit.redeem"),
	}
}

// Allow reports whether the client may attempt a redemption.
func (l *RedeemLimiter) Allow(ctx context.Context, clientIP string) bool {
	if l == nil || l.bucket == nil || clientIP == "" {
		return true
	}

	res, err := l.bucket.Allow(ctx, "ratelimit:redeem:"+clientIP, redeemRate, redeemBurst)
	if err != nil {
		l.log.Warn("rate limiter unavailable, failing open", zap.Error(err))
		return true
	}
	return res.Allowed
}
