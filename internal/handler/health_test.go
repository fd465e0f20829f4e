package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func up(context.Context) error   { return nil }
func down(context.Context) error { return errors.New("connection refused") }

func TestReady(t *testing.T) {
	h := New("invencea", "1.0.0", Dependency{"database", up}, Dependency{"cache", down})

	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Data ReadyResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Data.Ready)
	require.Len(t, body.Data.Checks, 2)
	assert.Equal(t, "ok", body.Data.Checks[0].Status)
	assert.Equal(t, "connection refused", body.Data.Checks[1].Error)
}

func TestStatusDegraded(t *testing.T) {
	h := New("invencea", "1.0.0", Dependency{"database", down})

	rec := httptest.NewRecorder()
	h.Status(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data StatusResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Data.Status)
	assert.Equal(t, "1.0.0", body.Data.Version)
}

func TestReadyWithoutDependencies(t *testing.T) {
	rec := httptest.NewRecorder()
	New("invencea", "1.0.0").Ready(rec, httptest.NewRequest(http.MethodGet, "/api/ready", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
