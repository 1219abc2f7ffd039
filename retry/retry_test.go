package retry

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var peers = []string{"10.0.0.1:80", "10.0.0.2:80", "10.0.0.3:80", "10.0.0.4:80"}

func testProxyRetry(t *testing.T, statusCode int) {
	var RESPONSE = []byte("message from server")
	var countFail = 0
	var tried []string
	serve := func(peer string, w http.ResponseWriter, r *http.Request) {
		tried = append(tried, peer)
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Equal(t, "payload", string(body))

		countFail++
		if countFail < Attempts {
			t.Logf("%dth, simulate server code %d", countFail, statusCode)
			w.WriteHeader(statusCode)
			w.Write([]byte("failure"))
			return
		}
		w.Header().Set("X-Peer", peer)
		w.Write(RESPONSE)
	}

	req := httptest.NewRequest("POST", "/test", strings.NewReader("payload"))
	rr := httptest.NewRecorder()
	attempts := Failover(rr, req, peers, serve)

	res := rr.Result()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, peers[2], res.Header.Get("X-Peer"))

	respBody, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	defer res.Body.Close()
	assert.Equal(t, RESPONSE, respBody)

	assert.Equal(t, peers[:Attempts], tried)
	require.Len(t, attempts, Attempts)
	assert.Equal(t, statusCode, attempts[0].StatusCode)
	assert.Equal(t, Attempt{Peer: peers[2], StatusCode: http.StatusOK, InBytes: 7, OutBytes: uint64(len(RESPONSE))}, attempts[2])
}

func TestProxyRetry500(t *testing.T) {
	testProxyRetry(t, http.StatusInternalServerError)
}

func TestProxyRetry502(t *testing.T) {
	testProxyRetry(t, http.StatusBadGateway)
}

func TestProxyRetry503(t *testing.T) {
	testProxyRetry(t, http.StatusServiceUnavailable)
}

func TestProxyRetry504(t *testing.T) {
	testProxyRetry(t, http.StatusGatewayTimeout)
}

func TestProxyRetryFail(t *testing.T) {
	serve := func(peer string, w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}

	req := httptest.NewRequest("POST", "/test", nil)
	rr := httptest.NewRecorder()
	attempts := Failover(rr, req, peers, serve)

	res := rr.Result()
	assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
	assert.Len(t, attempts, Attempts)
}

func TestNoRetry(t *testing.T) {
	var tried []string
	serve := func(peer string, w http.ResponseWriter, r *http.Request) {
		tried = append(tried, peer)
		w.WriteHeader(http.StatusNotFound)
	}

	rr := httptest.NewRecorder()
	attempts := Failover(rr, httptest.NewRequest("GET", "/", nil), peers[:1], serve)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, peers[:1], tried)
	assert.Len(t, attempts, 1)

	// Fewer peers than attempts.
	tried = nil
	serve = func(peer string, w http.ResponseWriter, r *http.Request) {
		tried = append(tried, peer)
		w.WriteHeader(http.StatusBadGateway)
	}
	rr = httptest.NewRecorder()
	attempts = Failover(rr, httptest.NewRequest("GET", "/", nil), peers[:2], serve)
	assert.Equal(t, http.StatusBadGateway, rr.Code)
	assert.Equal(t, peers[:2], tried)
	assert.Len(t, attempts, 2)
}

func TestShouldRetry(t *testing.T) {
	assert.True(t, ShouldRetry(http.StatusBadGateway))
	assert.False(t, ShouldRetry(http.StatusOK))
	assert.False(t, ShouldRetry(http.StatusNotFound))
}

func TestProxyRetryEarlyHints(t *testing.T) {
	serve := func(peer string, w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", "</style.css>; rel=preload")
		w.WriteHeader(http.StatusEarlyHints)
		if peer == peers[0] {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("overloaded"))
			return
		}
		w.Write([]byte("ok"))
	}

	req := httptest.NewRequest("GET", "/test", nil)
	rr := httptest.NewRecorder()
	attempts := Failover(rr, req, peers, serve)

	require.Len(t, attempts, 2)
	assert.Equal(t, http.StatusServiceUnavailable, attempts[0].StatusCode)
	assert.Equal(t, http.StatusOK, attempts[1].StatusCode)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestBufferedResponseWriter(t *testing.T) {
	w := NewBufferedResponseWriter()
	w.WriteHeader(http.StatusContinue)
	w.WriteHeader(http.StatusEarlyHints)
	assert.Equal(t, http.StatusOK, w.Code())

	w.WriteHeader(http.StatusNotFound)
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte("missing"))
	assert.Equal(t, http.StatusNotFound, w.Code())
	assert.Equal(t, 7, w.Len())
}
