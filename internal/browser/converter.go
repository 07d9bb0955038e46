package browser

import (
	"llmsecrets/internal/host"
	"llmsecrets/pkg/domain"

	"github.com/mafredri/cdp/devtool"
	"github.com/tidwall/gjson"
)

// ToHostEvent 将绑定调用的负载转换为 host.Event
func ToHostEvent(payload string) (host.Event, bool) {
	if !gjson.Valid(payload) {
		return host.Event{}, false
	}
	res := gjson.Parse(payload)
	kind := host.EventKind(res.Get("kind").String())
	switch kind {
	case host.EventKey, host.EventClick, host.EventMutation, host.EventReady, host.EventCTA:
	default:
		return host.Event{}, false
	}
	return host.Event{
		Kind:    kind,
		Surface: domain.Surface{Gen: res.Get("gen").Int()},
	}, true
}

// ToTargetInfo 将 devtool 目标转换为领域模型
func ToTargetInfo(t *devtool.Target) domain.TargetInfo {
	return domain.TargetInfo{
		ID:    domain.TargetID(t.ID),
		Type:  string(t.Type),
		URL:   t.URL,
		Title: t.Title,
	}
}
