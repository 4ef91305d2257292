package deeplink

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/desert5047-spec/test-keper-sub000/internal/utils"
)

// Parameter keys the auth server writes into callback URLs.
const (
	KeyAccessToken      = "access_token"
	KeyRefreshToken     = "refresh_token"
	KeyCode             = "code"
	KeyType             = "type"
	KeyError            = "error"
	KeyErrorCode        = "error_code"
	KeyErrorDescription = "error_description"
)

// Link types carried in the "type" parameter.
const (
	TypeRecovery    = "recovery"
	TypeSignup      = "signup"
	TypeMagicLink   = "magiclink"
	TypeInvite      = "invite"
	TypeEmailChange = "email_change"
)

// ErrorCodeOTPExpired is what the auth server reports for a stale email link.
const ErrorCodeOTPExpired = "otp_expired"

// AuthParameters holds everything the reconciliation flow needs from a
// callback URL. An empty field means the parameter was not present.
type AuthParameters struct {
	// AccessToken is the JWT issued by the implicit flow.
	// Found in: hash fragment (conventionally), sometimes the query
	// Example: "eyJhbGciOiJIUzI1NiIs..."
	AccessToken string

	// RefreshToken pairs with AccessToken for SetSession.
	// Found in: hash fragment
	RefreshToken string

	// Code is the PKCE authorization code, exchanged for a session.
	// Found in: query string
	// Example: "5a1c2f0e-..."
	Code string

	// Type identifies why the link was sent.
	// Example: "recovery" for password reset links, "signup" for confirmations
	Type string

	// Error, ErrorCode and ErrorDescription are set when the auth server
	// rejected the link (e.g. error_code=otp_expired).
	Error            string
	ErrorCode        string
	ErrorDescription string
}

// IsRecovery reports whether this is a password reset link.
func (p AuthParameters) IsRecovery() bool {
	return p.Type == TypeRecovery
}

// HasTokens reports whether both halves of a session token pair are present.
func (p AuthParameters) HasTokens() bool {
	return p.AccessToken != "" && p.RefreshToken != ""
}

func (p AuthParameters) HasCode() bool {
	return p.Code != ""
}

func (p AuthParameters) HasError() bool {
	return p.Error != "" || p.ErrorCode != ""
}

// Empty reports whether the URL carried nothing the flow can act on.
func (p AuthParameters) Empty() bool {
	return p.AccessToken == "" && p.RefreshToken == "" && p.Code == "" && !p.HasError()
}

// String renders the parameters with token values redacted, so the struct
// can go into logs.
func (p AuthParameters) String() string {
	return fmt.Sprintf("access_token=%s refresh_token=%s code=%s type=%q error=%q error_code=%q",
		redact(p.AccessToken), redact(p.RefreshToken), redact(p.Code), p.Type, p.Error, p.ErrorCode)
}

func redact(v string) string {
	if v == "" {
		return "<none>"
	}
	return fmt.Sprintf("<%d chars>", len(v))
}

// Extract pulls AuthParameters out of a raw callback URL. The fragment is
// consulted before the query for every key. Extract never fails: anything
// that cannot be parsed is simply absent.
func Extract(raw string) AuthParameters {
	query, fragment := Split(raw)
	lookup := func(key string) string {
		return utils.FirstNonEmpty(fragment[key], query[key])
	}
	return AuthParameters{
		AccessToken:      lookup(KeyAccessToken),
		RefreshToken:     lookup(KeyRefreshToken),
		Code:             lookup(KeyCode),
		Type:             lookup(KeyType),
		Error:            lookup(KeyError),
		ErrorCode:        lookup(KeyErrorCode),
		ErrorDescription: lookup(KeyErrorDescription),
	}
}

// Split returns the query-string and hash-fragment pairs of raw as two maps.
// A missing "?" or "#" yields an empty map.
func Split(raw string) (query, fragment map[string]string) {
	beforeHash, afterHash, _ := strings.Cut(strings.TrimSpace(raw), "#")

	query = map[string]string{}
	if _, q, ok := strings.Cut(beforeHash, "?"); ok {
		query = parsePairs(q)
	}

	// Hash routers put a path before the pairs: "#/callback?access_token=..."
	if route, rest, ok := strings.Cut(afterHash, "?"); ok && !strings.Contains(route, "=") {
		afterHash = rest
	}
	fragment = parsePairs(afterHash)
	return query, fragment
}

// parsePairs parses "k=v&k=v". The first occurrence of a key wins.
func parsePairs(s string) map[string]string {
	pairs := map[string]string{}
	for _, part := range strings.Split(s, "&") {
		if part == "" {
			continue
		}
		k, v, _ := strings.Cut(part, "=")
		k = decode(k)
		if k == "" {
			continue
		}
		if _, seen := pairs[k]; seen {
			continue
		}
		pairs[k] = decode(v)
	}
	return pairs
}

// decode percent-decodes s, keeping the raw text when it is not valid
// percent-encoding.
func decode(s string) string {
	decoded, err := url.QueryUnescape(s)
	if err != nil {
		return s
	}
	return decoded
}
