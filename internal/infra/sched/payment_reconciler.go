package sched

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"course-payment-portal/internal/domain/ports/repository"
	"course-payment-portal/internal/infra/redis"
	"course-payment-portal/internal/usecase"
)

const reconcilerLockKey = "sched:payment_reconciler"

// PaymentReconciler periodically scans for verified payments still stuck in
// pending and retries gateway confirmation. This covers the window where the
// process crashed between OTP verification and capture, or where the capture
// call failed transiently.
type PaymentReconciler struct {
	uc         usecase.PaymentUseCase
	payments   repository.PaymentRepository
	locker     *redis.RedisLocker
	interval   time.Duration // how often to scan
	staleAfter time.Duration // how old a verified pending payment must be to retry
	log        *zerolog.Logger
}

func NewPaymentReconciler(
	uc usecase.PaymentUseCase,
	payments repository.PaymentRepository,
	locker *redis.RedisLocker,
	interval, staleAfter time.Duration,
	logger *zerolog.Logger,
) *PaymentReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 5 * time.Minute
	}
	l := logger.With().Str("component", "payment_reconciler").Logger()
	return &PaymentReconciler{uc: uc, payments: payments, locker: locker, interval: interval, staleAfter: staleAfter, log: &l}
}

func (w *PaymentReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.tick(ctx)
		}
	}
}

func (w *PaymentReconciler) tick(ctx context.Context) {
	// Only one instance sweeps at a time.
	token, err := w.locker.TryLock(ctx, reconcilerLockKey, w.interval)
	if err != nil {
		if !errors.Is(err, redis.ErrLockHeld) {
			w.log.Error().Err(err).Msg("acquire sweep lock")
		}
		return
	}
	defer func() { _ = w.locker.Unlock(ctx, reconcilerLockKey, token) }()

	cutoff := time.Now().Add(-w.staleAfter)
	stuck, err := w.payments.ListVerifiedPendingOlderThan(ctx, nil, cutoff, 200)
	if err != nil {
		w.log.Error().Err(err).Msg("list stuck payments")
		return
	}
	for _, p := range stuck {
		if p.IntentID == "" {
			continue
		}
		res, err := w.uc.ConfirmPending(ctx, p.ID)
		if err != nil {
			w.log.Warn().Err(err).Str("payment_id", p.ID).Msg("reconcile failed")
			continue
		}
		w.log.Info().Str("payment_id", p.ID).Str("outcome", string(res.Outcome)).Msg("reconciled")
	}
}
