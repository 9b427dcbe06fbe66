package api

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lp24213/mailbridge/internal/crypto"
	"github.com/lp24213/mailbridge/internal/db"
	"github.com/lp24213/mailbridge/internal/imap"
)

func TestGetOwnerID(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	r.Header.Set(OwnerIDHeader, "owner-1")
	w := httptest.NewRecorder()

	ownerID, ok := GetOwnerID(w, r)
	require.True(t, ok)
	assert.Equal(t, "owner-1", ownerID)
}

func TestGetOwnerIDMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/api/v1/accounts", nil)
	w := httptest.NewRecorder()

	_, ok := GetOwnerID(w, r)
	assert.False(t, ok)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestParseListParams(t *testing.T) {
	tests := []struct {
		name       string
		query      string
		wantLimit  int
		wantOffset int
	}{
		{name: "defaults", query: "", wantLimit: 50, wantOffset: 0},
		{name: "explicit", query: "?limit=10&offset=20", wantLimit: 10, wantOffset: 20},
		{name: "invalid limit ignored", query: "?limit=abc&offset=-5", wantLimit: 50, wantOffset: 0},
		{name: "zero limit ignored", query: "?limit=0", wantLimit: 50, wantOffset: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/api/v1/events"+tt.query, nil)
			limit, offset := ParseListParams(r, 50)
			assert.Equal(t, tt.wantLimit, limit)
			assert.Equal(t, tt.wantOffset, offset)
		})
	}
}

func TestParseUID(t *testing.T) {
	w := httptest.NewRecorder()
	uid, ok := ParseUID(w, "42")
	require.True(t, ok)
	assert.Equal(t, uint32(42), uid)

	for _, bad := range []string{"0", "-1", "abc", ""} {
		w := httptest.NewRecorder()
		_, ok := ParseUID(w, bad)
		assert.False(t, ok, "segment %q should be rejected", bad)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
}

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
	}{
		{db.ErrAccountNotFound, http.StatusNotFound},
		{db.ErrAccountExists, http.StatusConflict},
		{imap.ErrMessageNotFound, http.StatusNotFound},
		{imap.ErrTimeout, http.StatusServiceUnavailable},
		{imap.ErrConnectionFailed, http.StatusBadGateway},
		{crypto.ErrDecryptionFailed, http.StatusInternalServerError},
		{errors.New("anything else"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteServiceError(w, tt.err)
		assert.Equal(t, tt.wantStatus, w.Code, "error %v", tt.err)
	}
}
