package service

// UserPayload is the user representation embedded in token responses and
// returned by the profile endpoints.
type UserPayload struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Session is the response for flows that establish a login.
type Session struct {
	Access  string      `json:"access"`
	Refresh string      `json:"refresh"`
	User    UserPayload `json:"user"`
}

// TokenPair is the response for the refresh endpoint.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Username  string
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// DashboardPayload is the dashboard endpoint response.
type DashboardPayload struct {
	User    UserPayload `json:"user"`
	Message string      `json:"message"`
}

// ProfileUpdate carries a partial profile update. Nil fields are left
// untouched.
type ProfileUpdate struct {
	Username  *string
	Email     *string
	FirstName *string
	LastName  *string
}
