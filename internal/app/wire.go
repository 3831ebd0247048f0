package app

import (
	"fmt"
	"log/slog"
	"path/filepath"

	elog "e2ecore/internal/log"
	"e2ecore/suite"
)

// Wire bundles the constructed dependencies for a CLI invocation.
type Wire struct {
	Suite     suite.Suite
	Logger    *slog.Logger
	VaultPath string
}

// NewWire constructs the dependency graph from cfg.
func NewWire(cfg Config) (*Wire, error) {
	s, err := resolveSuite(cfg.SuiteName)
	if err != nil {
		return nil, fmt.Errorf("resolving suite: %w", err)
	}

	return &Wire{
		Suite:     s,
		Logger:    elog.New(elog.Config{Level: cfg.LogLevel, JSON: true}),
		VaultPath: filepath.Join(cfg.HomeDir, "vault.bin"),
	}, nil
}

func resolveSuite(name string) (suite.Suite, error) {
	switch name {
	case "", "classic":
		return suite.NewClassic("e2ecli/v1"), nil
	case "nistp256":
		return suite.NewNISTP256("e2ecli/v1"), nil
	default:
		return nil, fmt.Errorf("unknown suite %q (want classic or nistp256)", name)
	}
}
