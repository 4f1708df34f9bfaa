package public

import "github.com/mirrorchyan/storefront/internal/provider"

// Handler 前台/公开接口处理器入口
// 说明：结账会话接口需要结账令牌，其余接口游客可用。
type Handler struct {
	*provider.Container
}

// New 创建前台处理器
func New(c *provider.Container) *Handler {
	return &Handler{Container: c}
}
