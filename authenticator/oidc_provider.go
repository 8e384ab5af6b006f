package authenticator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"

	"github.com/blogem/licitacoes/config"
)

// OIDCProvider signs users in against any OpenID Connect issuer (Auth0,
// Keycloak, gov.br and so on)
type OIDCProvider struct {
	oauth    oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewOIDCProvider discovers the issuer at cfg.Domain. Discovery makes a
// network call bounded by ctx.
func NewOIDCProvider(ctx context.Context, cfg config.OIDCConfig) (Provider, error) {
	var missing []error
	for _, setting := range []struct{ name, value string }{
		{"OIDC_DOMAIN", cfg.Domain},
		{"OIDC_CLIENT_ID", cfg.ClientID},
		{"OIDC_CLIENT_SECRET", cfg.ClientSecret},
		{"OIDC_CALLBACK_URL", cfg.CallbackURL},
	} {
		if setting.value == "" {
			missing = append(missing, fmt.Errorf("%s is required", setting.name))
		}
	}
	if err := errors.Join(missing...); err != nil {
		return nil, err
	}

	issuer, err := oidc.NewProvider(ctx, issuerURL(cfg.Domain))
	if err != nil {
		return nil, fmt.Errorf("oidc discovery for %s: %w", cfg.Domain, err)
	}

	return &OIDCProvider{
		oauth: oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.CallbackURL,
			Endpoint:     issuer.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "profile", "email"},
		},
		verifier: issuer.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

// issuerURL accepts a bare domain or a full URL
func issuerURL(domain string) string {
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return strings.TrimSuffix(domain, "/") + "/"
	}
	return "https://" + domain + "/"
}

func (p *OIDCProvider) GetAuthURL(state string) string {
	return p.oauth.AuthCodeURL(state)
}

func (p *OIDCProvider) ExchangeCode(ctx context.Context, code string) (*Token, error) {
	t, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("code exchange: %w", err)
	}
	return fromOAuth2(t), nil
}

func fromOAuth2(t *oauth2.Token) *Token {
	idToken, _ := t.Extra("id_token").(string)
	return &Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		IDToken:      idToken,
		Expiry:       t.Expiry.Unix(),
	}
}

// GetClaims verifies the ID token signature and audience. Tokens without a
// subject are rejected because the subject becomes the audit actor id.
func (p *OIDCProvider) GetClaims(ctx context.Context, token *Token) (Claims, error) {
	if token == nil || token.IDToken == "" {
		return nil, errors.New("token carries no id_token")
	}

	idToken, err := p.verifier.Verify(ctx, token.IDToken)
	if err != nil {
		return nil, fmt.Errorf("id_token verification: %w", err)
	}

	claims := Claims{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("id_token claims: %w", err)
	}
	if claims.str("sub") == "" {
		return nil, errors.New("id_token has no subject")
	}
	return claims, nil
}
