package models

// SyncRequest is the body of POST /api/auth/sync. The identity provider's
// subject arrives as google_id from the web client; external_id is accepted too.
type SyncRequest struct {
	GoogleID   string  `json:"google_id"`
	ExternalID string  `json:"external_id"`
	Email      string  `json:"email" binding:"required,email"`
	Name       string  `json:"name" binding:"required,max=255"`
	Image      *string `json:"image"`
}

// Subject returns whichever external id the client supplied.
func (r SyncRequest) Subject() string {
	if r.ExternalID != "" {
		return r.ExternalID
	}
	return r.GoogleID
}

// SyncResult is the outcome of an identity sync
type SyncResult struct {
	User      User   `json:"user"`
	Family    Family `json:"family"`
	IsNewUser bool   `json:"is_new_user"`
	Token     string `json:"token,omitempty"`
}
