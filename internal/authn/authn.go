// Package authn 从网关注入的请求头中识别已认证用户。
package authn

import (
	"context"
	"strings"

	"credit-service/internal/constants"
	creditErrors "credit-service/internal/errors"

	"github.com/go-kratos/kratos/v2/middleware"
	"github.com/go-kratos/kratos/v2/middleware/selector"
	"github.com/go-kratos/kratos/v2/transport"
)

type userKey struct{}

// NewContext 将用户ID写入 context
func NewContext(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// UserIDFromContext 读取已认证用户ID
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(userKey{}).(string)
	return userID, ok && userID != ""
}

// Server 读取 X-User-Id 请求头，缺失时返回 401
func Server() middleware.Middleware {
	return func(handler middleware.Handler) middleware.Handler {
		return func(ctx context.Context, req interface{}) (interface{}, error) {
			tr, ok := transport.FromServerContext(ctx)
			if !ok {
				return nil, creditErrors.New(creditErrors.ErrCodeUnauthenticated)
			}
			userID := strings.TrimSpace(tr.RequestHeader().Get(constants.HeaderUserID))
			if userID == "" {
				return nil, creditErrors.New(creditErrors.ErrCodeUnauthenticated)
			}
			return handler(NewContext(ctx, userID), req)
		}
	}
}

// NewWhiteListMatcher 返回无需认证的 operation 之外都匹配的 MatchFunc
func NewWhiteListMatcher(operations ...string) selector.MatchFunc {
	whiteList := make(map[string]struct{}, len(operations))
	for _, op := range operations {
		whiteList[op] = struct{}{}
	}
	return func(ctx context.Context, operation string) bool {
		if _, ok := whiteList[operation]; ok {
			return false
		}
		return true
	}
}

// Selector 对白名单外的 operation 启用认证
func Selector(operations ...string) middleware.Middleware {
	return selector.Server(Server()).Match(NewWhiteListMatcher(operations...)).Build()
}
