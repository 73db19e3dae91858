package logging

import (
	"os"

	"go.uber.org/zap"
)

// New builds the process logger. LOG_LEVEL=debug switches to a development
// config; anything else gets the production JSON encoder.
func New() (*zap.Logger, error) {
	if os.Getenv("LOG_LEVEL") == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
