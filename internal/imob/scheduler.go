package imob

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs periodic maintenance: delivering due scheduled notifications,
// purging old read notifications and expired audit entries, and dropping
// stale login lockouts.
type Scheduler struct {
	notificacoes       *NotificacaoService
	auth               *AuthService
	audit              *AuditService
	interval           time.Duration
	retentionDays      int
	auditRetentionDays int
	stopCh             chan struct{}
}

func NewScheduler(notificacoes *NotificacaoService, auth *AuthService, audit *AuditService, intervalSeconds, retentionDays, auditRetentionDays int) *Scheduler {
	return &Scheduler{
		notificacoes:       notificacoes,
		auth:               auth,
		audit:              audit,
		interval:           time.Duration(intervalSeconds) * time.Second,
		retentionDays:      retentionDays,
		auditRetentionDays: auditRetentionDays,
		stopCh:             make(chan struct{}),
	}
}

// Start begins the scheduler loop in a goroutine.
func (sc *Scheduler) Start() {
	go sc.run()
}

// Stop signals the scheduler to shut down.
func (sc *Scheduler) Stop() {
	close(sc.stopCh)
}

func (sc *Scheduler) run() {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()

	// Run once on startup after a short delay
	select {
	case <-time.After(10 * time.Second):
		sc.tick()
	case <-sc.stopCh:
		return
	}

	for {
		select {
		case <-ticker.C:
			sc.tick()
		case <-sc.stopCh:
			return
		}
	}
}

func (sc *Scheduler) tick() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if n, err := sc.notificacoes.DeliverDue(ctx); err != nil {
		slog.Error("Scheduler: deliver due notifications", "error", err)
	} else if n > 0 {
		slog.Info("Scheduler: delivered scheduled notifications", "count", n)
	}

	if n, err := sc.notificacoes.PurgeOld(ctx, sc.retentionDays); err != nil {
		slog.Error("Scheduler: purge old notifications", "error", err)
	} else if n > 0 {
		slog.Info("Scheduler: purged old notifications", "count", n)
	}

	if n, err := sc.auth.PurgeStaleLockouts(ctx); err != nil {
		slog.Error("Scheduler: purge stale lockouts", "error", err)
	} else if n > 0 {
		slog.Info("Scheduler: purged stale lockouts", "count", n)
	}

	if n, err := sc.audit.PurgeOld(ctx, sc.auditRetentionDays); err != nil {
		slog.Error("Scheduler: purge audit log", "error", err)
	} else if n > 0 {
		slog.Info("Scheduler: purged audit entries", "count", n)
	}
}
