package render

import (
	"net/http"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/message/catalog"
)

// Message keys
// Error keys are the same as error codes rendered to client
const (
	MsgInvalidCredentials  = "invalid_credentials"
	MsgMissingCredential   = "missing_credential"
	MsgMalformedCredential = "malformed_credential"
	MsgTokenExpired        = "token_expired"
	MsgRefreshExpired      = "refresh_expired"
	MsgRefreshReplayed     = "refresh_replayed"
	MsgUnknownSubject      = "unknown_subject"
	MsgUserExists          = "user_exists"
	MsgInternalError       = "internal_error"

	MsgValidationFailed = ValidationErrorType
	MsgDecodingFailed   = DecodingErrorType
	MsgInvalidFieldType = "invalid_field_type"

	MsgFieldRequired = "field_required"
	MsgFieldMin      = "field_min"
	MsgFieldMax      = "field_max"
	MsgFieldEmail    = "field_email"
	MsgFieldEqual    = "field_eqfield"
	MsgFieldUsername = "field_username"
	MsgFieldInvalid  = "field_invalid"

	MsgSignedUp  = "signed_up"
	MsgLoggedOut = "logged_out"
)

var chinese = language.MustParse("zh-Hans")

// First one is the default
var supportedTags = []language.Tag{
	language.English,
	chinese,
}

var tagMatcher = language.NewMatcher(supportedTags)

var messages = map[string]map[language.Tag]string{
	MsgInvalidCredentials: {
		language.English: "Invalid username or password",
		chinese:          "用户名或密码错误",
	},
	MsgMissingCredential: {
		language.English: "Credential is missing",
		chinese:          "凭证缺失",
	},
	MsgMalformedCredential: {
		language.English: "Credential is invalid",
		chinese:          "凭证无效",
	},
	MsgTokenExpired: {
		language.English: "Session expired, please refresh the session",
		chinese:          "会话已过期，请刷新会话",
	},
	MsgRefreshExpired: {
		language.English: "Refresh credential expired, please log in again",
		chinese:          "刷新凭证已过期，请重新登陆",
	},
	MsgRefreshReplayed: {
		language.English: "Refresh credential was already used, please log in again",
		chinese:          "刷新凭证已被使用，请重新登陆",
	},
	MsgUnknownSubject: {
		language.English: "Session expired, please log in again",
		chinese:          "会话已过期，请重新登陆",
	},
	MsgUserExists: {
		language.English: "Username already exists",
		chinese:          "用户名已存在",
	},
	MsgInternalError: {
		language.English: "Internal server error, please contact administrator",
		chinese:          "服务器发生错误，请联系管理员",
	},
	MsgValidationFailed: {
		language.English: "Request validation failed",
		chinese:          "请求参数错误，请检查请求数据",
	},
	MsgDecodingFailed: {
		language.English: "Failed to parse JSON: %s",
		chinese:          "上送请求参数非法，请检查请求参数: %s",
	},
	MsgInvalidFieldType: {
		language.English: "Invalid data type for field '%s'",
		chinese:          "字段 '%s' 的数据类型无效",
	},
	MsgFieldRequired: {
		language.English: "This field is required",
		chinese:          "此字段为必填项",
	},
	MsgFieldMin: {
		language.English: "Value is too short (minimum %s)",
		chinese:          "值太短（最少 %s）",
	},
	MsgFieldMax: {
		language.English: "Value is too long (maximum %s)",
		chinese:          "值太长（最多 %s）",
	},
	MsgFieldEmail: {
		language.English: "Invalid email address",
		chinese:          "邮箱地址无效",
	},
	MsgFieldEqual: {
		language.English: "Value must be equal to '%s'",
		chinese:          "值必须与 '%s' 一致",
	},
	MsgFieldUsername: {
		language.English: "Only letters, digits, '_', '-' and '.' are allowed",
		chinese:          "只允许字母、数字、'_'、'-' 和 '.'",
	},
	MsgFieldInvalid: {
		language.English: "Invalid value",
		chinese:          "无效值",
	},
	MsgSignedUp: {
		language.English: "Signed up successfully",
		chinese:          "注册成功",
	},
	MsgLoggedOut: {
		language.English: "Logged out",
		chinese:          "已登出",
	},
}

var messageCatalog = buildCatalog()

func buildCatalog() catalog.Catalog {
	b := catalog.NewBuilder(catalog.Fallback(language.English))
	for key, translations := range messages {
		for tag, msg := range translations {
			_ = b.SetString(tag, key, msg)
		}
	}
	return b
}

// Pick supported language from Accept-Language header, English if nothing fits
func ResolveTag(r *http.Request) language.Tag {
	if r == nil {
		return supportedTags[0]
	}

	accept := strings.TrimSpace(r.Header.Get("Accept-Language"))
	if accept == "" {
		return supportedTags[0]
	}

	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return supportedTags[0]
	}

	_, index, _ := tagMatcher.Match(tags...)
	return supportedTags[index]
}

// Printer for request language
func Printer(r *http.Request) *message.Printer {
	return message.NewPrinter(ResolveTag(r), message.Catalog(messageCatalog))
}

// Localized message by key
func Localize(r *http.Request, key string, args ...any) string {
	return Printer(r).Sprintf(key, args...)
}
