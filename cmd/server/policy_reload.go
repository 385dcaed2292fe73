package main

import (
	"log/slog"
	"reflect"
	"sync"

	supportdesk "github.com/blueberrycongee/supportdesk"
	"github.com/blueberrycongee/supportdesk/internal/config"
)

type policySetter interface {
	SetPolicy(supportdesk.Policy) error
}

// policyReloader applies escalation thresholds from a reloaded configuration.
// Other sections are only read at startup, so changes to them are logged.
type policyReloader struct {
	logger  *slog.Logger
	target  policySetter
	mu      sync.Mutex
	current *config.Config
}

func newPolicyReloader(logger *slog.Logger, target policySetter, initial *config.Config) *policyReloader {
	if logger == nil {
		logger = slog.Default()
	}
	return &policyReloader{
		logger:  logger,
		target:  target,
		current: initial,
	}
}

func (r *policyReloader) Reload(cfg *config.Config) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.target.SetPolicy(supportdesk.PolicyFromConfig(cfg.Policy)); err != nil {
		r.logger.Error("failed to apply escalation policy", "error", err)
		return
	}
	r.logger.Info("escalation policy reloaded",
		"confidence_threshold", cfg.Policy.ConfidenceThreshold,
		"knowledge_threshold", cfg.Policy.KnowledgeThreshold,
		"streak_limit", cfg.Policy.StreakLimit,
	)

	if changed := restartSections(r.current, cfg); len(changed) > 0 {
		r.logger.Warn("configuration changes require a restart", "sections", changed)
	}
	r.current = cfg
}

// restartSections lists the sections that differ and are not hot-reloadable.
func restartSections(prev, next *config.Config) []string {
	if prev == nil || next == nil {
		return nil
	}
	var changed []string
	check := func(name string, a, b any) {
		if !reflect.DeepEqual(a, b) {
			changed = append(changed, name)
		}
	}
	check("server", prev.Server, next.Server)
	check("session", prev.Session, next.Session)
	check("oracle", prev.Oracle, next.Oracle)
	check("knowledge", prev.Knowledge, next.Knowledge)
	check("transcript", prev.Transcript, next.Transcript)
	check("rate_limit", prev.RateLimit, next.RateLimit)
	check("logging", prev.Logging, next.Logging)
	check("tracing", prev.Tracing, next.Tracing)
	return changed
}
