package assistant

import (
	"context"
	"edunexus_backend/pkg/logger"
	"errors"

	"go.uber.org/zap"
)

var ErrNoProvider = errors.New("all AI providers failed")

// Router 按注册顺序尝试，失败时回落到下一个
type Router struct {
	providers []Provider
}

func NewRouter(providers ...Provider) *Router {
	return &Router{providers: providers}
}

// Complete 返回实际应答的 provider 名称
func (r *Router) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, string, error) {
	for _, p := range r.providers {
		resp, err := p.Complete(ctx, req)
		if err != nil {
			if ctx.Err() != nil {
				return CompletionResponse{}, p.Name(), ctx.Err()
			}
			logger.Log.Warn("AI provider failed, trying next",
				zap.String("provider", p.Name()),
				zap.Error(err))
			continue
		}
		return resp, p.Name(), nil
	}
	return CompletionResponse{}, "", ErrNoProvider
}
