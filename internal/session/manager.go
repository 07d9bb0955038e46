package session

import (
	"sort"
	"sync"

	"llmsecrets/internal/logger"
	"llmsecrets/pkg/domain"
)

// Manager 按目标页面管理提交会话，每个标签页一个
type Manager struct {
	mu       sync.Mutex
	sessions map[domain.TargetID]*Session
	log      logger.Logger
}

// NewManager 创建会话管理器
func NewManager(l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{sessions: make(map[domain.TargetID]*Session), log: l}
}

// Acquire 返回目标的会话，不存在时创建；第二个返回值表示是否新建
func (m *Manager) Acquire(id domain.TargetID) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return s, false
	}
	s := New(id)
	m.sessions[id] = s
	m.log.Debug("创建提交会话", "target", string(id))
	return s, true
}

// Delete 移除会话，目标不存在时无操作
func (m *Manager) Delete(id domain.TargetID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; ok {
		delete(m.sessions, id)
		m.log.Debug("移除提交会话", "target", string(id))
	}
}

// Busy 正处于拦截周期中的目标，按 ID 排序
func (m *Manager) Busy() []domain.TargetID {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []domain.TargetID
	for id, s := range m.sessions {
		if s.Redacting() {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len 会话数量
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
