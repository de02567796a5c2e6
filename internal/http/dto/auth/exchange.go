package auth

// AppleExchangeRequest holds the body for POST /v1/auth/apple.
type AppleExchangeRequest struct {
	// IdentityToken is the JWT issued by Apple's sign-in flow. Required.
	IdentityToken string `json:"identity_token"`
	// AuthorizationCode is accepted for forward compatibility but not
	// redeemed server-side.
	AuthorizationCode string `json:"authorization_code,omitempty"`
	// Email is a client-supplied fallback: Apple only includes the email
	// claim on the first authorization.
	Email string `json:"email,omitempty"`
	// FullName is a client-supplied fallback for the display name.
	FullName string `json:"full_name,omitempty"`
}

// GoogleExchangeRequest holds the body for POST /v1/auth/google.
type GoogleExchangeRequest struct {
	// IDToken is the JWT issued by Google's sign-in flow. Required.
	IDToken string `json:"id_token"`
	// Email overrides the token's email claim when provided.
	Email string `json:"email,omitempty"`
	// FullName overrides the token's name claim when provided.
	FullName string `json:"full_name,omitempty"`
}
