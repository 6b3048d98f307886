package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/quillworks/inkwell/pkg/cryptox"
	"github.com/quillworks/inkwell/pkg/jwtx"
)

const rsaKeyBits = 2048

// initCodec builds the token codec from configured key material.
//
// Modes:
//   - PrivateKeyPath set: full codec, signs and verifies.
//   - Only PublicKeyPath set: verify-only replica; token issuance fails
//     with a signing error but authentication still works.
//   - Neither set: an ephemeral keypair is generated. Fine for dev and
//     tests, wrong for production since restarts orphan every session.
func initCodec(cfg Config, logger *slog.Logger) (*jwtx.Codec, error) {
	switch {
	case cfg.PrivateKeyPath != "":
		pem, err := os.ReadFile(cfg.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		return jwtx.NewCodec(pem)

	case cfg.PublicKeyPath != "":
		pem, err := os.ReadFile(cfg.PublicKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read public key: %w", err)
		}
		logger.Info("running verify-only: no private key configured")
		return jwtx.NewVerifyOnlyCodec(pem)

	default:
		logger.Warn("no key paths configured, generating ephemeral RSA keypair")
		pem, err := cryptox.GenerateRSAKey(rsaKeyBits)
		if err != nil {
			return nil, fmt.Errorf("generate ephemeral key: %w", err)
		}
		return jwtx.NewCodec(pem)
	}
}
