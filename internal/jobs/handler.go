package jobs

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"ms-booking/internal/logger"
)

type JobLocker interface {
	AcquireJobLock(jobName string, ttl time.Duration) (bool, error)
	ReleaseJobLock(jobName string) error
}

// Handler exposes the two scheduled jobs as HTTP endpoints for an external
// cron. A Redis lock per job keeps overlapping cron fires from double-running
// a sweep.
type Handler struct {
	Reconciler *Reconciler
	Sweeper    *TimeoutSweeper
	Locks      JobLocker
	LockTTL    time.Duration
	Logger     *logger.Logger
}

type jobResult struct {
	Job       string `json:"job"`
	Processed int    `json:"processed"`
}

func (h *Handler) ReconcilePayments(w http.ResponseWriter, r *http.Request) {
	h.runLocked(w, "payment_reconciliation", h.Reconciler.Run)
}

func (h *Handler) PaymentTimeouts(w http.ResponseWriter, r *http.Request) {
	h.runLocked(w, "payment_timeout", h.Sweeper.Run)
}

func (h *Handler) runLocked(w http.ResponseWriter, jobName string, run func() (int, error)) {
	ok, err := h.Locks.AcquireJobLock(jobName, h.LockTTL)
	if err != nil {
		// A lock failure shouldn't stop a scheduled sweep; both jobs are
		// idempotent, a rare double run is harmless.
		h.Logger.Warn("JOB", fmt.Sprintf("job lock error for %s, running anyway: %v", jobName, err))
	} else if !ok {
		h.Logger.Info("JOB", fmt.Sprintf("%s already running, skipping", jobName))
		http.Error(w, "job already running", http.StatusConflict)
		return
	} else {
		defer func() {
			if err := h.Locks.ReleaseJobLock(jobName); err != nil {
				h.Logger.Warn("JOB", fmt.Sprintf("failed to release job lock %s: %v", jobName, err))
			}
		}()
	}

	processed, err := run()
	if err != nil {
		h.Logger.Error("JOB", fmt.Sprintf("%s failed: %v", jobName, err))
		http.Error(w, "job failed: "+err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(jobResult{Job: jobName, Processed: processed}); err != nil {
		h.Logger.Error("JOB", fmt.Sprintf("%s: failed to encode response: %v", jobName, err))
	}
}
