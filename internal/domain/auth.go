package domain

// ============================================================
// Auth request / response types
// ============================================================

// Credentials is the body for POST /v1/auth/signin and /v1/auth/signup.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Session is returned by a successful sign-in.
type Session struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn"`
	UserID       string `json:"userId"`
	Email        string `json:"email"`
}

// Identity is the authenticated user behind a request. Every facture query
// is scoped to UserID.
type Identity struct {
	UserID string
	Email  string
	Token  string
}

// SignUpSucceededMessage is shown after a successful sign-up.
const SignUpSucceededMessage = "Votre compte a été créé avec succès. Vous pouvez maintenant vous connecter."
