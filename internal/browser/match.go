package browser

import (
	"regexp"
	"strings"
	"sync"
)

// MatchURL 判断目标页面地址是否匹配模式。
// 模式前缀 "re:" 表示正则，"=" 表示精确匹配，其余按首尾通配符处理。
func MatchURL(url, pattern string) bool {
	switch {
	case pattern == "" || pattern == "*":
		return true
	case strings.HasPrefix(pattern, "re:"):
		return matchRegex(url, strings.TrimPrefix(pattern, "re:"))
	case strings.HasPrefix(pattern, "="):
		return url == strings.TrimPrefix(pattern, "=")
	default:
		return glob(url, pattern)
	}
}

func glob(s, pattern string) bool {
	prefix := strings.HasPrefix(pattern, "*")
	suffix := strings.HasSuffix(pattern, "*")
	core := strings.Trim(pattern, "*")
	switch {
	case prefix && suffix:
		return strings.Contains(s, core)
	case prefix:
		return strings.HasSuffix(s, core)
	case suffix:
		return strings.HasPrefix(s, core)
	default:
		return s == pattern
	}
}

var regexCache sync.Map

func matchRegex(s, pattern string) bool {
	if v, ok := regexCache.Load(pattern); ok {
		return v.(*regexp.Regexp).MatchString(s)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	regexCache.Store(pattern, re)
	return re.MatchString(s)
}
