package oauth

// TokenResponse models the provider token endpoint response.
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64
	TokenType    string
	IDToken      string
	Scope        string
	Raw          map[string]any
}

// Profile is the normalized identity returned by the provider userinfo
// endpoint. Subject and Email are mandatory for reconciliation; without
// the subject no stable link can be made, without the email no local
// account can be created or matched.
type Profile struct {
	Subject    string
	Email      string
	GivenName  string
	FamilyName string
	Raw        map[string]any
}
