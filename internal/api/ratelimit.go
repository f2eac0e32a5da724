package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

// checkAuthRateLimit rejects clients that exceed the per-IP auth budget.
func (s *Server) checkAuthRateLimit(ctx context.Context) error {
	if s.authRateLimiter == nil {
		return nil
	}
	ip := clientInfo(ctx).IPAddress
	if !s.authRateLimiter.Allow(ip) {
		s.logger.Warn("rate limit exceeded", "ip", ip)
		return huma.Error429TooManyRequests("Request was throttled. Please try again later.")
	}
	return nil
}
