package authenticator

import (
	"context"

	"github.com/blogem/licitacoes/models"
)

// Token represents an authentication token
type Token struct {
	AccessToken  string
	RefreshToken string
	IDToken      string
	Expiry       int64
}

// Claims represents user claims from the ID token
type Claims map[string]interface{}

// Provider interface abstracts OAuth provider operations
type Provider interface {
	GetAuthURL(state string) string
	ExchangeCode(ctx context.Context, code string) (*Token, error)
	GetClaims(ctx context.Context, token *Token) (Claims, error)
}

func (c Claims) str(key string) string {
	s, _ := c[key].(string)
	return s
}

// User maps the ID token claims onto an account. The display name falls
// back from nickname to name to email to subject.
func (c Claims) User() *models.User {
	u := &models.User{
		Subject: c.str("sub"),
		Email:   c.str("email"),
	}

	for _, key := range []string{"nickname", "name", "email", "sub"} {
		if v := c.str(key); v != "" {
			u.DisplayName = v
			break
		}
	}
	return u
}
