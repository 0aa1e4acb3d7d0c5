package logger

import (
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/santerahq/claimsgate/internal/config"
)

// New builds the process logger. JSON output uses the production
// encoder with RFC3339 timestamps; anything else gets the development
// console encoder.
func New(cfg config.LogConfig) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
		zapCfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	zapCfg.Level = zap.NewAtomicLevelAt(level)
	zapCfg.OutputPaths = []string{cfg.OutputPath}
	zapCfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := zapCfg.Build(
		zap.WithCaller(true),
		// Stack traces for errors and above
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}

	return logger, nil
}

// Typed fields for the identifiers that recur across the claims
// pipeline. Field names match the column names in the claims schema.

func ReferralID(id uuid.UUID) zap.Field { return zap.String("referral_id", id.String()) }

func AdmissionID(id uuid.UUID) zap.Field { return zap.String("admission_id", id.String()) }

func PACodeID(id uuid.UUID) zap.Field { return zap.String("pa_id", id.String()) }

func ClaimID(id uuid.UUID) zap.Field { return zap.String("claim_id", id.String()) }
