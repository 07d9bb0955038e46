package pipeline

// State 拦截周期所处阶段
type State string

const (
	StateIdle              State = "idle"
	StateExtracting        State = "extracting"
	StateResolvingIdentity State = "resolving_identity"
	StateQuotaCheck        State = "quota_check"
	StateCalling           State = "calling"
	StateRewriting         State = "rewriting"
	StateResubmitting      State = "resubmitting"
	// StateFallback 以原文提交后回到 Idle
	StateFallback State = "fallback"
)
