package security

import (
	"net/http"
	"strings"

	"PPCollab/global"
	"PPCollab/tools/errs"

	"github.com/gin-gonic/gin"
)

// context key
// 后续模块统一用这个 key 读取凭证
const PPCtxAuthKey = "authorization" // string

type Options struct {
	// 读取哪个请求头
	HeaderToken               string // 默认 "authorization"
	QueryToken                string // 默认 "token"；浏览器 WebSocket 无法设置请求头
	EnableAuthorizationBearer bool   // 默认 true

	// Required 为 false 时缺失凭证也放行，由下游决定如何拒绝（/ws 握手需要先升级再以 1008 关闭）
	Required bool
}

func DefaultOptions() *Options {
	return &Options{
		HeaderToken:               PPCtxAuthKey,
		QueryToken:                "token",
		EnableAuthorizationBearer: true,
		Required:                  true,
	}
}

// Extract pulls the bearer credential out of the request: query parameter
// first, then the plain header, then "Authorization: Bearer".
func Extract(r *http.Request, opts *Options) string {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.QueryToken != "" {
		if t := strings.TrimSpace(r.URL.Query().Get(opts.QueryToken)); t != "" {
			return t
		}
	}
	if opts.HeaderToken != "" && !strings.EqualFold(opts.HeaderToken, "Authorization") {
		if t := strings.TrimSpace(r.Header.Get(opts.HeaderToken)); t != "" {
			return t
		}
	}
	if opts.EnableAuthorizationBearer {
		authz := strings.TrimSpace(r.Header.Get("Authorization"))
		if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
			return strings.TrimSpace(authz[len("bearer "):])
		}
	}
	return ""
}

func Middleware(opts *Options) gin.HandlerFunc {
	if opts == nil {
		opts = DefaultOptions()
	}
	return func(c *gin.Context) {
		token := Extract(c.Request, opts)
		if token != "" {
			c.Set(PPCtxAuthKey, token)
		}

		if token == "" && opts.Required {
			c.AbortWithStatusJSON(http.StatusUnauthorized, global.Fail(errs.ErrTokenMissing.Wrap()))
			return
		}

		c.Next()
	}
}

// TokenFrom returns what Middleware stored, falling back to reading the
// request directly when the middleware was not mounted.
func TokenFrom(c *gin.Context) string {
	if t := c.GetString(PPCtxAuthKey); t != "" {
		return t
	}
	return Extract(c.Request, nil)
}
