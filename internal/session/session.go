package session

import (
	"sync"

	"llmsecrets/pkg/domain"
)

// Session 单个目标页面的提交会话状态：互斥标志、当前绑定的输入区域、监听是否已挂载
type Session struct {
	mu        sync.Mutex
	target    domain.TargetID
	redacting bool
	surface   domain.Surface
	bound     bool
}

// New 创建会话
func New(target domain.TargetID) *Session {
	return &Session{target: target}
}

// Target 所属目标
func (s *Session) Target() domain.TargetID { return s.target }

// Begin 尝试进入拦截周期，已有周期在进行时返回 false（手势被丢弃而非排队）
func (s *Session) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.redacting {
		return false
	}
	s.redacting = true
	return true
}

// End 结束拦截周期
func (s *Session) End() {
	s.mu.Lock()
	s.redacting = false
	s.mu.Unlock()
}

// Redacting 是否处于拦截周期中
func (s *Session) Redacting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.redacting
}

// Surface 当前绑定的输入区域
func (s *Session) Surface() domain.Surface {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.surface
}

// Bind 记录已在 surf 上挂载监听
func (s *Session) Bind(surf domain.Surface) {
	s.mu.Lock()
	s.surface = surf
	s.bound = true
	s.mu.Unlock()
}

// Unbind 记录监听已移除，保留输入区域引用
func (s *Session) Unbind() {
	s.mu.Lock()
	s.bound = false
	s.mu.Unlock()
}

// Bound 监听是否挂载在当前输入区域上
func (s *Session) Bound() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bound
}

// NeedsRebind surf 与当前绑定不同，或监听尚未挂载
func (s *Session) NeedsRebind(surf domain.Surface) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.bound || s.surface != surf
}
