package auth

import (
	"log/slog"

	"go.uber.org/fx"

	"github.com/polkiloo/payledger/internal/config"
)

// Module provides the operator token verifier via fx.
var Module = fx.Options(
	fx.Provide(newTokenVerifier),
)

type verifierParams struct {
	fx.In

	Config *config.Config
	Logger *slog.Logger
}

// newTokenVerifier returns nil when no hash is configured, which leaves the
// operations API open.
func newTokenVerifier(p verifierParams) (TokenVerifier, error) {
	if p.Config.OpsTokenHash == "" {
		p.Logger.Warn("operator token hash not configured, ops API is unauthenticated")
		return nil, nil
	}
	v, err := NewBcryptVerifier(p.Config.OpsTokenHash)
	if err != nil {
		return nil, err
	}
	return v, nil
}
