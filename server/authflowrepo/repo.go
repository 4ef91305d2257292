package authflowrepo

import "time"

// AuthFlowState is what the portal keeps between starting a federated
// sign-in and receiving its callback.
type AuthFlowState struct {
	CodeVerifier string
	Provider     string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(flowID string, flow *AuthFlowState) error
	Get(flowID string) (*AuthFlowState, error)
	Delete(flowID string) error
}
