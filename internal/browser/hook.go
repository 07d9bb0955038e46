package browser

import (
	"encoding/json"
	"strings"
)

const (
	bindingName = "__llmsecretsEmit"
	hookGlobal  = "__llmsecrets"
)

// hookTemplate 注入页面的钩子脚本，只负责必须在页面内完成的部分：
// 捕获阶段监听、DOM 读写、变更观察与提示渲染。所有决策都在 Go 侧。
const hookTemplate = `(() => {
  if (window.__HOOK__) { window.__HOOK__.announce(); return; }
  const BINDING = __BINDING__;
  const SURFACE = __SURFACE__;
  const SUBMIT = __SUBMIT__;
  const state = { gen: Date.now(), byGen: new Map(), delegate: false, observer: null, pass: false, mutPending: false };

  const emit = (msg) => { try { window[BINDING](JSON.stringify(msg)); } catch (e) {} };
  const genOf = (el) => {
    if (!el.__llmsecretsGen) { el.__llmsecretsGen = ++state.gen; }
    state.byGen.set(el.__llmsecretsGen, el);
    return el.__llmsecretsGen;
  };
  const live = (gen) => {
    const el = state.byGen.get(gen);
    if (!el || !el.isConnected) { state.byGen.delete(gen); throw new Error('surface ' + gen + ' detached'); }
    return el;
  };
  const isCommit = (e) => e.key === 'Enter' && !e.shiftKey && !e.isComposing;
  const onKey = (e) => {
    if (!isCommit(e)) return;
    e.preventDefault(); e.stopPropagation();
    emit({ kind: 'key', gen: genOf(e.currentTarget) });
  };
  const holdKey = (e) => {
    if (!isCommit(e)) return;
    e.preventDefault(); e.stopPropagation();
  };
  const onClick = (e) => {
    const btn = e.target && e.target.closest ? e.target.closest(SUBMIT) : null;
    if (!btn) return;
    if (state.pass) { state.pass = false; return; }
    e.preventDefault(); e.stopPropagation();
    const el = document.querySelector(SURFACE);
    emit({ kind: 'click', gen: el ? genOf(el) : 0 });
  };
  const norm = (s) => (s || '').replace(/\s+/g, ' ').trim();

  const api = {
    announce() { emit({ kind: 'ready' }); },
    locate() {
      const el = document.querySelector(SURFACE);
      return el ? genOf(el) : 0;
    },
    bindKeys(gen) {
      const el = state.byGen.get(gen);
      if (!el) return false;
      el.removeEventListener('keydown', holdKey, true);
      el.addEventListener('keydown', onKey, true);
      return true;
    },
    holdKeys(gen) {
      const el = state.byGen.get(gen);
      if (!el) return true;
      el.removeEventListener('keydown', onKey, true);
      el.addEventListener('keydown', holdKey, true);
      return true;
    },
    unbindKeys(gen) {
      const el = state.byGen.get(gen);
      if (!el) return true;
      el.removeEventListener('keydown', onKey, true);
      el.removeEventListener('keydown', holdKey, true);
      return true;
    },
    bindDelegate() {
      if (!state.delegate) { document.addEventListener('click', onClick, true); state.delegate = true; }
      return true;
    },
    unbindDelegate() {
      document.removeEventListener('click', onClick, true);
      state.delegate = false;
      return true;
    },
    watch() {
      if (state.observer) return true;
      state.observer = new MutationObserver(() => {
        if (state.mutPending) return;
        state.mutPending = true;
        setTimeout(() => { state.mutPending = false; emit({ kind: 'mutation' }); }, 100);
      });
      state.observer.observe(document.body || document.documentElement, { childList: true, subtree: true });
      return true;
    },
    unwatch() {
      if (state.observer) { state.observer.disconnect(); state.observer = null; }
      return true;
    },
    read(gen) { return live(gen).innerHTML; },
    write(gen, html) {
      const el = live(gen);
      el.innerHTML = html;
      el.dispatchEvent(new Event('input', { bubbles: true }));
      return true;
    },
    settle(gen, want, timeoutMs) {
      const deadline = Date.now() + timeoutMs;
      const target = norm(want);
      return new Promise((resolve) => {
        const check = () => {
          const el = state.byGen.get(gen);
          const btn = document.querySelector(SUBMIT);
          if (el && el.isConnected && norm(el.innerText) === target && btn && !btn.disabled) { resolve(true); return; }
          if (Date.now() >= deadline) { resolve(false); return; }
          setTimeout(check, 50);
        };
        check();
      });
    },
    click() {
      const btn = document.querySelector(SUBMIT);
      if (!btn) return false;
      state.pass = true;
      try { btn.click(); } finally { state.pass = false; }
      return true;
    },
    toast(kind, message, ttlMs, cta) {
      const old = document.getElementById('llmsecrets-toast');
      if (old) old.remove();
      const box = document.createElement('div');
      box.id = 'llmsecrets-toast';
      box.setAttribute('role', 'alert');
      box.setAttribute('aria-live', 'assertive');
      box.dataset.kind = kind;
      box.style.cssText = 'position:fixed;top:20px;right:20px;max-width:360px;padding:12px 16px;border-radius:6px;' +
        'z-index:10001;font:14px sans-serif;box-shadow:0 2px 4px rgba(0,0,0,.2);display:flex;gap:8px;align-items:flex-start;' +
        (kind === 'error' ? 'background:#fee2e2;color:#7f1d1d;' : 'background:#fff;color:#000;');
      const text = document.createElement('span');
      text.textContent = message;
      text.style.flex = '1';
      box.appendChild(text);
      if (cta) {
        const get = document.createElement('button');
        get.textContent = 'Get API key';
        get.addEventListener('click', (e) => { e.stopPropagation(); box.remove(); emit({ kind: 'cta' }); });
        box.appendChild(get);
      }
      const close = document.createElement('button');
      close.textContent = 'X';
      close.addEventListener('click', () => box.remove());
      box.appendChild(close);
      (document.body || document.documentElement).appendChild(box);
      if (ttlMs > 0) setTimeout(() => box.remove(), ttlMs);
      return true;
    },
    loading(on) {
      let el = document.getElementById('llmsecrets-loading');
      if (!on) { if (el) el.remove(); return true; }
      if (!el) {
        el = document.createElement('div');
        el.id = 'llmsecrets-loading';
        el.style.cssText = 'position:fixed;inset:0;display:flex;align-items:center;justify-content:center;' +
          'background:rgba(75,85,99,.4);z-index:10000;color:#fff;font:16px sans-serif;';
        el.textContent = 'Scanning for secrets...';
        document.documentElement.appendChild(el);
      }
      return true;
    },
  };
  Object.defineProperty(window, '__HOOK__', { value: api, configurable: true });
  api.announce();
})();`

// hookScript 生成带有选择器的钩子脚本
func hookScript(surfaceSelector, submitSelector string) string {
	return strings.NewReplacer(
		"__HOOK__", hookGlobal,
		"__BINDING__", jsString(bindingName),
		"__SURFACE__", jsString(surfaceSelector),
		"__SUBMIT__", jsString(submitSelector),
	).Replace(hookTemplate)
}

// callExpr 生成调用钩子方法的表达式，参数按 JSON 编码
func callExpr(method string, args ...any) (string, error) {
	parts := make([]string, 0, len(args))
	for _, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			return "", err
		}
		parts = append(parts, string(b))
	}
	return "window." + hookGlobal + "." + method + "(" + strings.Join(parts, ", ") + ")", nil
}

func jsString(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
