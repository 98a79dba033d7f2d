package server

// HTTPError is a generic error envelope returned by the server.
type HTTPError struct {
	Error string `json:"error"`
}

// AuthSignupRequest represents the signup payload.
type AuthSignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthLoginRequest represents the login payload.
type AuthLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse carries a bearer token.
type TokenResponse struct {
	Token string `json:"token"`
}

// IDResponse is a generic id response wrapper.
type IDResponse struct {
	ID string `json:"id"`
}

// ResearchRequest starts a research run.
type ResearchRequest struct {
	Query     string `json:"query"`
	MaxPapers int    `json:"max_papers,omitempty"`
}

// CreateTopicRequest represents a new saved topic payload.
type CreateTopicRequest struct {
	Name         string `json:"name"`
	Query        string `json:"query"`
	ScheduleCron string `json:"schedule_cron"`
}
