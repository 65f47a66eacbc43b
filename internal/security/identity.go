package security

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sarthak03dot/Chat-App/internal/domain"
)

// IdentityResolver maps an inbound request to a stable user identity.
type IdentityResolver struct {
	tokens *TokenService
	users  domain.UserRepository
}

func NewIdentityResolver(tokens *TokenService, users domain.UserRepository) *IdentityResolver {
	return &IdentityResolver{tokens: tokens, users: users}
}

// Resolve authenticates r and loads the user it belongs to. All failures
// wrap domain.ErrUnauthorized.
func (r *IdentityResolver) Resolve(req *http.Request) (*domain.User, error) {
	tokenStr, err := ExtractToken(req)
	if err != nil {
		return nil, err
	}
	return r.ResolveToken(req.Context(), tokenStr)
}

// ResolveToken authenticates a raw bearer token.
func (r *IdentityResolver) ResolveToken(ctx context.Context, tokenStr string) (*domain.User, error) {
	sub, err := r.tokens.Subject(tokenStr)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid token: %v", domain.ErrUnauthorized, err)
	}
	user, err := r.users.GetByID(ctx, sub)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("%w: unknown user", domain.ErrUnauthorized)
	}
	if err != nil {
		return nil, err
	}
	return user, nil
}

// ExtractToken reads the bearer token from the Authorization header, the
// Sec-WebSocket-Protocol header ("bearer, <token>") or the token query
// parameter, in that order.
func ExtractToken(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") && parts[1] != "" {
			return parts[1], nil
		}
	}

	if token := r.URL.Query().Get("token"); token != "" {
		return token, nil
	}

	return "", fmt.Errorf("%w: missing bearer token", domain.ErrUnauthorized)
}
