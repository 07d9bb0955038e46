package api

import (
	"context"

	"llmsecrets/internal/config"
	"llmsecrets/internal/identity"
	"llmsecrets/internal/logger"
	"llmsecrets/internal/service"
	"llmsecrets/pkg/domain"
)

// Usage 匿名额度使用情况
type Usage = service.Usage

// Service 服务接口
type Service interface {
	// ListTargets 列出目标
	ListTargets(ctx context.Context) ([]domain.TargetInfo, error)

	// AttachTarget 附加目标，id 为空时按地址匹配
	AttachTarget(ctx context.Context, id domain.TargetID) (domain.TargetInfo, error)

	// DetachTarget 分离目标
	DetachTarget(ctx context.Context, id domain.TargetID) error

	// Attached 已附加的目标
	Attached() []domain.TargetInfo

	// SetAPIKey 保存 API Key
	SetAPIKey(ctx context.Context, key string) error

	// ClearAPIKey 删除 API Key
	ClearAPIKey(ctx context.Context) error

	// APIKey 读取 API Key
	APIKey(ctx context.Context) (string, bool, error)

	// Usage 匿名额度
	Usage(ctx context.Context) (Usage, error)

	// DeviceID 匿名设备 ID
	DeviceID(ctx context.Context) (string, error)

	// SubscribeEvents 订阅事件
	SubscribeEvents() <-chan domain.Event

	// Close 分离所有目标
	Close(ctx context.Context) error
}

// NewService 创建并返回服务接口实现
func NewService(cfg *config.Config, store identity.Store, l logger.Logger) Service {
	return service.New(cfg, store, l)
}
