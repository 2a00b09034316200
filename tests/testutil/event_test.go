package testutil

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventRecorder(t *testing.T) {
	r := NewEventRecorder("CompanyProvisioned")
	assert.Equal(t, []string{"CompanyProvisioned"}, r.EventTypes())

	event := NewTestEvent("CompanyProvisioned")
	require.NoError(t, r.Handle(context.Background(), event))
	assert.Equal(t, []string{"CompanyProvisioned"}, r.Types())
	assert.Same(t, event, r.Handled()[0])

	r.SetError(assert.AnError)
	assert.ErrorIs(t, r.Handle(context.Background(), event), assert.AnError)
	assert.Len(t, r.Handled(), 2)
}

func TestWaitForCondition(t *testing.T) {
	var n atomic.Int32
	ok := WaitForCondition(t, func() bool { return n.Add(1) >= 3 }, time.Second, time.Millisecond)
	assert.True(t, ok)

	ok = WaitForCondition(t, func() bool { return false }, 20*time.Millisecond, 5*time.Millisecond)
	assert.False(t, ok)
}

func TestPerformRequest(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "yes", r.Header.Get("X-Test"))
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"success":false,"error":{"code":"ERR_CONFLICT"}}`))
	})

	w := PerformRequest(t, h, http.MethodPost, "/x", map[string]string{"a": "b"}, map[string]string{"X-Test": "yes"})
	AssertErrorCode(t, w, http.StatusConflict, "ERR_CONFLICT")
}
