package identity

import (
	"context"
	"fmt"

	"llmsecrets/internal/logger"
	"llmsecrets/pkg/domain"

	"github.com/google/uuid"
)

// 持久化键名
const (
	KeyAPIKey      = "apiKey"
	KeyAnonymousID = "anonymousId"
	// KeyLegacyUserID 早期版本写入的设备 ID
	KeyLegacyUserID = "userId"
	KeyUsageCount   = "anonymousUsageCount"
)

// Store 本地持久化状态
type Store interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string) error
	GetInt(ctx context.Context, key string) (int, bool, error)
	SetInt(ctx context.Context, key string, value int) error
	Delete(ctx context.Context, key string) error
}

// Resolver 身份与额度解析器
type Resolver struct {
	store Store
	log   logger.Logger
	newID func() string
}

// NewResolver 创建解析器
func NewResolver(store Store, l logger.Logger) *Resolver {
	if l == nil {
		l = logger.NewNop()
	}
	return &Resolver{store: store, log: l, newID: uuid.NewString}
}

// ValidAPIKey API Key 格式校验：长度大于 10
func ValidAPIKey(key string) bool {
	return len(key) > 10
}

// Resolve 返回当前生效的身份：有效 API Key 优先，否则为匿名身份
func (r *Resolver) Resolve(ctx context.Context) (domain.Identity, error) {
	key, ok, err := r.store.GetString(ctx, KeyAPIKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIdentity, err)
	}
	if ok && ValidAPIKey(key) {
		r.log.Debug("使用 API Key 身份")
		return domain.APIKeyIdentity{Key: key}, nil
	}

	deviceID, err := r.DeviceID(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIdentity, err)
	}
	count, err := r.Usage(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrIdentity, err)
	}
	return domain.AnonymousIdentity{DeviceID: deviceID, UsageCount: count}, nil
}

// DeviceID 读取设备 ID，首次使用时生成并持久化
func (r *Resolver) DeviceID(ctx context.Context) (string, error) {
	for _, key := range []string{KeyAnonymousID, KeyLegacyUserID} {
		id, ok, err := r.store.GetString(ctx, key)
		if err != nil {
			return "", err
		}
		if ok && id != "" {
			return id, nil
		}
	}

	id := r.newID()
	if err := r.store.SetString(ctx, KeyAnonymousID, id); err != nil {
		return "", err
	}
	r.log.Info("生成新的匿名设备 ID")
	return id, nil
}

// Usage 匿名已用次数，缺省为 0
func (r *Resolver) Usage(ctx context.Context) (int, error) {
	n, _, err := r.store.GetInt(ctx, KeyUsageCount)
	if err != nil {
		return 0, err
	}
	return n, nil
}

// IncrementUsage 持久化 usageCount+1 并返回新值
func (r *Resolver) IncrementUsage(ctx context.Context) (int, error) {
	n, err := r.Usage(ctx)
	if err != nil {
		return 0, err
	}
	n++
	if err := r.store.SetInt(ctx, KeyUsageCount, n); err != nil {
		return 0, err
	}
	r.log.Info("匿名使用次数已更新", "count", n)
	return n, nil
}

// SetAPIKey 保存 API Key，格式不合法时拒绝
func (r *Resolver) SetAPIKey(ctx context.Context, key string) error {
	if !ValidAPIKey(key) {
		return fmt.Errorf("API Key 格式不合法：长度必须大于 10")
	}
	return r.store.SetString(ctx, KeyAPIKey, key)
}

// ClearAPIKey 删除已保存的 API Key，回到匿名身份
func (r *Resolver) ClearAPIKey(ctx context.Context) error {
	return r.store.Delete(ctx, KeyAPIKey)
}

// APIKey 返回已保存的 API Key
func (r *Resolver) APIKey(ctx context.Context) (string, bool, error) {
	return r.store.GetString(ctx, KeyAPIKey)
}
