package server

import (
	"github.com/desert5047-spec/test-keper-sub000/reconcile"
	"golang.org/x/text/language"
)

// Portal error codes carried in ?error= next to the reconcile message ids.
const (
	errInvalidCredentials = "invalid_credentials"
	errMissingFields      = "missing_fields"
	errPasswordMismatch   = "password_mismatch"
	errPasswordTooShort   = "password_too_short"
	errRecoveryRequired   = "recovery_required"
)

const minPasswordLength = 8

var portalMessages = map[language.Tag]map[string]string{
	language.Japanese: {
		errInvalidCredentials: "メールアドレスまたはパスワードが正しくありません。",
		errMissingFields:      "メールアドレスとパスワードを入力してください。",
		errPasswordMismatch:   "パスワードが一致しません。",
		errPasswordTooShort:   "パスワードは8文字以上で入力してください。",
		errRecoveryRequired:   "パスワード再設定のリンクをもう一度開いてください。",
	},
	language.English: {
		errInvalidCredentials: "Incorrect email or password.",
		errMissingFields:      "Enter your email and password.",
		errPasswordMismatch:   "The passwords do not match.",
		errPasswordTooShort:   "Passwords must be at least 8 characters.",
		errRecoveryRequired:   "Open the password reset link again.",
	},
}

var pageTitles = map[language.Tag]map[string]string{
	language.Japanese: {
		"login":         "ログイン",
		"email":         "メールアドレス",
		"password":      "パスワード",
		"google":        "Googleでログイン",
		"signedIn":      "ログイン中",
		"openApp":       "アプリを開く",
		"logout":        "ログアウト",
		"resetPassword": "パスワード再設定",
		"newPassword":   "新しいパスワード",
		"confirm":       "新しいパスワード(確認)",
		"submit":        "送信",
		"relaying":      "ログイン処理中です…",
	},
	language.English: {
		"login":         "Sign in",
		"email":         "Email",
		"password":      "Password",
		"google":        "Sign in with Google",
		"signedIn":      "Signed in",
		"openApp":       "Open the app",
		"logout":        "Sign out",
		"resetPassword": "Reset password",
		"newPassword":   "New password",
		"confirm":       "Confirm new password",
		"submit":        "Submit",
		"relaying":      "Signing you in…",
	},
}

// messageText renders an ?error= code in lang. Unknown codes render nothing.
func messageText(code string, lang language.Tag) string {
	if code == "" {
		return ""
	}
	if text, ok := portalMessages[lang][code]; ok {
		return text
	}
	return reconcile.ParseMessageID(code).Text(lang)
}

func labels(lang language.Tag) map[string]string {
	if l, ok := pageTitles[lang]; ok {
		return l
	}
	return pageTitles[language.Japanese]
}
