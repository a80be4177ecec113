package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/omegafolio/internal/database"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHealth(t *testing.T) {
	db, err := database.New(database.Config{Path: t.TempDir() + "/cache.db", Name: "cache", Profile: database.ProfileCache})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, db.Migrate())

	h := NewSystemHandlers([]*database.DB{db}, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodGet, "/api/system/health", nil)
	rec := httptest.NewRecorder()
	h.HandleHealth(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])

	databases, ok := body["databases"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ok", databases["cache"])
}

func TestHandleTriggerBackupUnconfigured(t *testing.T) {
	h := NewSystemHandlers(nil, nil, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/system/backup", nil)
	rec := httptest.NewRecorder()
	h.HandleTriggerBackup(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
