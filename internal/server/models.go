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

// ResearchRequest starts a research session.
type ResearchRequest struct {
	Query string `json:"query"`
	Model string `json:"model,omitempty"`
}

// UpdateTitleRequest renames a session.
type UpdateTitleRequest struct {
	Title string `json:"title"`
}

// SessionListResponse is a page of sessions.
type SessionListResponse struct {
	Sessions interface{} `json:"sessions"`
	Limit    int         `json:"limit"`
	Offset   int         `json:"offset"`
}

// ProgressSnapshot is the cached view of a running session's progress.
type ProgressSnapshot struct {
	SessionID string          `json:"session_id"`
	Status    string          `json:"status"`
	Stages    []ProgressStage `json:"stages"`
	UpdatedAt string          `json:"updated_at"`
}

// ProgressStage is one recorded pipeline stage.
type ProgressStage struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}
