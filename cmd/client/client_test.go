package main

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// flakyServer fails the first request on every path with a 500.
func flakyServer(t *testing.T) (*httptest.Server, *int32) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"count":170001}`))
	}))
	t.Cleanup(server.Close)

	return server, &calls
}

func TestMakeCall_IncrementNotRetried(t *testing.T) {
	server, calls := flakyServer(t)

	_, err := MakeCall(newClient("increment"), server.URL, "increment", 0)

	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestMakeCall_GetRetried(t *testing.T) {
	server, calls := flakyServer(t)

	count, err := MakeCall(newClient("get"), server.URL, "get", 0)

	require.NoError(t, err)
	assert.Equal(t, int64(170001), count)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}
