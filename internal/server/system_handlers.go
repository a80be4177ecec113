package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/aristath/omegafolio/internal/database"
	"github.com/aristath/omegafolio/internal/reliability"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
)

// SystemHandlers handles system monitoring and operations endpoints.
type SystemHandlers struct {
	log           zerolog.Logger
	startupTime   time.Time
	databases     []*database.DB
	backupService *reliability.BackupService // nil when backups are not configured
}

// NewSystemHandlers creates the system handlers. backupService may be nil.
func NewSystemHandlers(databases []*database.DB, backupService *reliability.BackupService, log zerolog.Logger) *SystemHandlers {
	return &SystemHandlers{
		log:           log.With().Str("handler", "system").Logger(),
		startupTime:   time.Now(),
		databases:     databases,
		backupService: backupService,
	}
}

// HandleHealth reports process and database health.
func (h *SystemHandlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	dbStatus := make(map[string]string, len(h.databases))
	healthy := true
	for _, db := range h.databases {
		if err := db.QuickCheck(ctx); err != nil {
			dbStatus[db.Name()] = "error: " + err.Error()
			healthy = false
		} else {
			dbStatus[db.Name()] = "ok"
		}
	}

	var cpuPct float64
	if percents, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(percents) > 0 {
		cpuPct = percents[0]
	}

	var memUsedPct float64
	if memStat, err := mem.VirtualMemory(); err == nil {
		memUsedPct = memStat.UsedPercent
	}

	status := http.StatusOK
	statusText := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		statusText = "degraded"
	}

	h.writeJSON(w, status, map[string]interface{}{
		"status":           statusText,
		"uptime_seconds":   int64(time.Since(h.startupTime).Seconds()),
		"cpu_percent":      cpuPct,
		"mem_used_percent": memUsedPct,
		"databases":        dbStatus,
	})
}

// HandleTriggerBackup runs a backup immediately.
func (h *SystemHandlers) HandleTriggerBackup(w http.ResponseWriter, r *http.Request) {
	if h.backupService == nil {
		h.writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	if err := h.backupService.CreateAndUploadBackup(r.Context()); err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "backup completed"})
}

// HandleListBackups lists the backups in the bucket.
func (h *SystemHandlers) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if h.backupService == nil {
		h.writeError(w, http.StatusServiceUnavailable, "backups are not configured")
		return
	}

	backups, err := h.backupService.ListBackups(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	h.writeJSON(w, http.StatusOK, backups)
}

func (h *SystemHandlers) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func (h *SystemHandlers) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
