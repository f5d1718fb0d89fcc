// Package logging builds the root structured logger. Every long-lived
// component narrows it with .Named(...) rather than taking its own logging
// dependency.
package logging

import "go.uber.org/zap"

// New builds the root logger: development (human-readable, debug-enabled)
// when verbose is set, production (JSON, info-level) otherwise.
func New(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
