package feed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, CalendarPath, r.URL.Path)
		_, _ = w.Write([]byte(sampleICS))
	}))
	defer srv.Close()

	body, err := NewClient(srv.URL+"/", time.Second).Raw(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte(sampleICS), body)
}

func TestClient_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"Failed to fetch calendar data"}`))
	}))
	defer srv.Close()

	body, err := NewClient(srv.URL, time.Second).Raw(context.Background())
	assert.Nil(t, body)

	var cerr *ClientError
	require.True(t, errors.As(err, &cerr))
	assert.Equal(t, http.StatusInternalServerError, cerr.StatusCode)
	assert.Contains(t, cerr.Error(), "500")
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	_, err := NewClient(addr, time.Second).Raw(context.Background())

	var cerr *ClientError
	require.True(t, errors.As(err, &cerr))
	assert.Zero(t, cerr.StatusCode)
}
