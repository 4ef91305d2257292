package reconcile

import "fmt"

// Target is where the app goes after a callback.
type Target int

const (
	TargetNone Target = iota
	TargetPasswordReset
	TargetMainApp
	TargetLogin
)

func (t Target) String() string {
	switch t {
	case TargetPasswordReset:
		return "password-reset"
	case TargetMainApp:
		return "main-app"
	case TargetLogin:
		return "login"
	}
	return "none"
}

// Decision is the redirect chosen for one callback invocation.
type Decision struct {
	Target Target
	// Message is set for TargetLogin
	Message MessageID
	// AccessToken and RefreshToken are carried to the password reset screen
	AccessToken  string
	RefreshToken string
	// Err is the technical cause of a failure, for logging only
	Err error
}

func ToPasswordReset(accessToken, refreshToken string) Decision {
	return Decision{Target: TargetPasswordReset, AccessToken: accessToken, RefreshToken: refreshToken}
}

func ToMainApp() Decision {
	return Decision{Target: TargetMainApp}
}

func ToLogin(msg MessageID, cause error) Decision {
	return Decision{Target: TargetLogin, Message: msg, Err: cause}
}

func (d Decision) String() string {
	if d.Target == TargetLogin {
		return fmt.Sprintf("%s(%s)", d.Target, d.Message)
	}
	return d.Target.String()
}
