package reconcile

import (
	"golang.org/x/text/language"
)

// MessageID names a user-facing message. Technical causes are logged, never shown.
type MessageID int

const (
	MessageNone MessageID = iota
	MessageAuthFailed
	MessageTimeout
	MessageLinkExpired
	MessageCancelled
	MessageUnexpected
	MessageUnsupportedPlatform
)

var supportedLanguages = []language.Tag{
	language.Japanese, // default
	language.English,
}

var languageMatcher = language.NewMatcher(supportedLanguages)

var catalog = map[language.Tag]map[MessageID]string{
	language.Japanese: {
		MessageAuthFailed:          "認証に失敗しました。もう一度お試しください。",
		MessageTimeout:             "認証がタイムアウトしました。もう一度お試しください。",
		MessageLinkExpired:         "リンクの有効期限が切れています。もう一度お試しください。",
		MessageCancelled:           "認証がキャンセルされました。",
		MessageUnexpected:          "予期しないエラーが発生しました。もう一度お試しください。",
		MessageUnsupportedPlatform: "この環境ではGoogleログインを利用できません。",
	},
	language.English: {
		MessageAuthFailed:          "Authentication failed. Please try again.",
		MessageTimeout:             "Authentication timed out. Please try again.",
		MessageLinkExpired:         "This link has expired. Please try again.",
		MessageCancelled:           "Authentication was cancelled.",
		MessageUnexpected:          "An unexpected error occurred. Please try again.",
		MessageUnsupportedPlatform: "Google sign-in is not available here.",
	},
}

// Text renders the message in the best match for prefs, Japanese by default.
func (id MessageID) Text(prefs ...language.Tag) string {
	if id == MessageNone {
		return ""
	}
	return catalog[MatchLanguage(prefs...)][id]
}

// MatchLanguage picks the supported language closest to prefs.
func MatchLanguage(prefs ...language.Tag) language.Tag {
	if len(prefs) == 0 {
		return supportedLanguages[0]
	}
	_, idx, conf := languageMatcher.Match(prefs...)
	if conf == language.No {
		return supportedLanguages[0]
	}
	return supportedLanguages[idx]
}

// ParseAcceptLanguage reads an Accept-Language header. Malformed input
// yields no preference.
func ParseAcceptLanguage(header string) []language.Tag {
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	return tags
}

func (id MessageID) String() string {
	switch id {
	case MessageAuthFailed:
		return "auth-failed"
	case MessageTimeout:
		return "timeout"
	case MessageLinkExpired:
		return "link-expired"
	case MessageCancelled:
		return "cancelled"
	case MessageUnexpected:
		return "unexpected"
	case MessageUnsupportedPlatform:
		return "unsupported-platform"
	}
	return "none"
}

// ParseMessageID is the inverse of MessageID.String.
func ParseMessageID(s string) MessageID {
	for id := MessageAuthFailed; id <= MessageUnsupportedPlatform; id++ {
		if id.String() == s {
			return id
		}
	}
	return MessageNone
}
