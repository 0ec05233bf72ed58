package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the identity a verified bearer token carries.
type Claims struct {
	Subject string
	Roles   []string
}

func (c *Claims) HasRole(roles ...string) bool {
	for _, have := range c.Roles {
		for _, want := range roles {
			if have == want {
				return true
			}
		}
	}
	return false
}

type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (*Claims, error)
}

// ExtractTokenFromRequest extracts a JWT token from an HTTP request's Authorization header
func ExtractTokenFromRequest(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", errors.New("authorization header is missing")
	}

	// Bearer token format: "Bearer {token}"
	parts := strings.Fields(authHeader)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("authorization header format must be 'Bearer {token}'")
	}

	return parts[1], nil
}

// HMACVerifier checks HS256 tokens signed with a shared secret.
type HMACVerifier struct {
	Secret    []byte
	RoleClaim string
}

func NewHMACVerifier(secret, roleClaim string) *HMACVerifier {
	if roleClaim == "" {
		roleClaim = "role"
	}
	return &HMACVerifier{Secret: []byte(secret), RoleClaim: roleClaim}
}

func (v *HMACVerifier) Verify(_ context.Context, rawToken string) (*Claims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(rawToken, claims, func(t *jwt.Token) (interface{}, error) {
		return v.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return nil, errors.New("subject claim not found in token")
	}
	return &Claims{Subject: sub, Roles: rolesFrom(claims, v.RoleClaim)}, nil
}

// OIDCVerifier checks tokens issued by an OpenID Connect provider such as
// Keycloak.
type OIDCVerifier struct {
	verifier  *oidc.IDTokenVerifier
	roleClaim string
}

func NewOIDCVerifier(ctx context.Context, issuer, roleClaim string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}
	if roleClaim == "" {
		roleClaim = "role"
	}
	// Access tokens carry no client audience.
	verifier := provider.Verifier(&oidc.Config{SkipClientIDCheck: true})
	return &OIDCVerifier{verifier: verifier, roleClaim: roleClaim}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}

	var raw map[string]interface{}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}
	return &Claims{Subject: idToken.Subject, Roles: rolesFrom(raw, v.roleClaim)}, nil
}

// rolesFrom reads roles from the configured claim (a string or a list) and
// from Keycloak's realm_access.roles.
func rolesFrom(claims map[string]interface{}, roleClaim string) []string {
	var roles []string
	switch v := claims[roleClaim].(type) {
	case string:
		if v != "" {
			roles = append(roles, v)
		}
	case []interface{}:
		roles = append(roles, stringsOf(v)...)
	}
	if realm, ok := claims["realm_access"].(map[string]interface{}); ok {
		if list, ok := realm["roles"].([]interface{}); ok {
			roles = append(roles, stringsOf(list)...)
		}
	}
	return roles
}

func stringsOf(list []interface{}) []string {
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}
