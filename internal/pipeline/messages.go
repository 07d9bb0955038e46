package pipeline

import (
	"fmt"

	"llmsecrets/pkg/domain"
)

const (
	msgIdentity     = "No API key or anonymous ID available. Continuing with original text."
	msgExtract      = "Could not read the message. Continuing with original text."
	msgNetwork      = "An error occurred during redaction. Continuing with original text."
	msgMalformed    = "No redacted text found in the response. Continuing with original text."
	msgRewrite      = "Could not update the message. Continuing with original text."
	msgForbidden    = "Access forbidden. Check your API key. Continuing with original text."
	msgManualSend   = "Unable to send the message automatically. Please try sending manually."
	msgSettleFailed = "The page did not pick up the redacted text. Please review it and send manually."
)

func errorNotice(msg string) domain.Notice {
	return domain.Notice{Kind: domain.NoticeError, Message: msg}
}

func httpErrorNotice(status int) domain.Notice {
	return errorNotice(fmt.Sprintf("Redaction failed (HTTP %d). Continuing with original text.", status))
}

// localLimitNotice 本地额度检查拦截时的提示
func localLimitNotice(limit int) domain.Notice {
	return domain.Notice{
		Kind:    domain.NoticeQuota,
		Message: fmt.Sprintf("You have reached your free limit of %d redactions. Continuing without protection.", limit),
		CTA:     true,
	}
}

// forbiddenNotice 服务端 403：匿名身份为额度用尽，API Key 身份为授权拒绝
func forbiddenNotice(id domain.Identity, limit int) domain.Notice {
	if _, anon := id.(domain.AnonymousIdentity); anon {
		return domain.Notice{
			Kind:    domain.NoticeQuota,
			Message: fmt.Sprintf("You have reached your free limit of %d secrets. Continuing with original text.", limit),
			CTA:     true,
		}
	}
	return domain.Notice{Kind: domain.NoticeQuota, Message: msgForbidden, CTA: true}
}

// UsageNotice 成功的匿名脱敏之后按新计数给出的提示，“接近上限”与“已达上限”互斥
func UsageNotice(count, limit int) domain.Notice {
	if count >= limit {
		return domain.Notice{
			Kind:    domain.NoticeQuota,
			Message: fmt.Sprintf("You have reached your free limit of %d secrets. Please get an API key to continue using the extension.", limit),
			CTA:     true,
		}
	}
	return domain.Notice{
		Kind:    domain.NoticeUsage,
		Message: fmt.Sprintf("You have used %d out of %d free requests.", count, limit),
	}
}
