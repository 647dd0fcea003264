package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
)

// OIDCValidator verifies tokens against an OIDC issuer's published keys.
type OIDCValidator struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCValidator runs discovery against issuerURL. Discovery happens once,
// at startup; key rotation is handled by the verifier's remote key set.
func NewOIDCValidator(ctx context.Context, issuerURL, audience string) (*OIDCValidator, error) {
	issuerURL = strings.TrimSpace(issuerURL)
	if issuerURL == "" {
		return nil, errors.New("identity: oidc issuer is required")
	}
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("oidc provider discovery: %w", err)
	}
	cfg := &oidc.Config{ClientID: audience}
	if strings.TrimSpace(audience) == "" {
		cfg.SkipClientIDCheck = true
	}
	return &OIDCValidator{verifier: provider.Verifier(cfg)}, nil
}

func (v *OIDCValidator) Validate(ctx context.Context, token string) (uuid.UUID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return uuid.Nil, unauthenticated(errors.New("empty token"))
	}
	idToken, err := v.verifier.Verify(ctx, token)
	if err != nil {
		return uuid.Nil, unauthenticated(err)
	}
	return parseSubject(idToken.Subject)
}
