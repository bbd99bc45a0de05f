package di

import (
	"github.com/goliatone/go-errors"
	"go.uber.org/zap"
)

func newLogger(cfg LoggingConfig) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}

	if cfg.Level != "" {
		level, err := zap.ParseAtomicLevel(cfg.Level)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryValidation, "invalid log level")
		}
		zc.Level = level
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, "build logger")
	}
	return logger, nil
}
