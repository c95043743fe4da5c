package dune

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDune struct {
	statusCalls  atomic.Int32
	executeCalls atomic.Int32
	finalState   string

	mu         sync.Mutex
	lastParams map[string]string
}

func (f *fakeDune) params() map[string]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastParams
}

func (f *fakeDune) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/query/", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-key", r.Header.Get("X-Dune-API-Key"))
		f.executeCalls.Add(1)

		var req executeRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		f.mu.Lock()
		f.lastParams = req.QueryParameters
		f.mu.Unlock()

		queryID := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/query/"), "/execute")
		json.NewEncoder(w).Encode(map[string]string{"execution_id": "exec-" + queryID, "state": StatePending})
	})
	mux.HandleFunc("/execution/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "/status"):
			state := StateExecuting
			if f.statusCalls.Add(1) > 1 {
				state = f.finalState
			}
			json.NewEncoder(w).Encode(map[string]string{"state": state})
		case strings.HasSuffix(r.URL.Path, "/results"):
			w.Write([]byte(`{"state":"QUERY_STATE_COMPLETED","result":{"rows":[{"chain":"Total","TVL":4500000000.5}],"metadata":{"column_names":["chain","TVL"]}}}`))
		default:
			http.NotFound(w, r)
		}
	})
	return mux
}

func TestLoaderLoad(t *testing.T) {
	fake := &fakeDune{finalState: StateCompleted}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL, HTTPClient: srv.Client()}, nil)
	loader := NewLoader(LoaderConfig{
		Queries:      map[string]int{"tvl": 2741943},
		PollInterval: 5 * time.Millisecond,
	}, client, nil)

	params := Params{
		StartDate: time.Date(2023, 7, 24, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2023, 7, 31, 0, 0, 0, 0, time.UTC),
		SolStart:  1200.5,
		SolEnd:    1300,
	}

	datasets, err := loader.Load(context.Background(), params)
	require.NoError(t, err)
	require.Len(t, datasets["tvl"], 1)

	tvl, err := datasets["tvl"][0].Float("TVL")
	require.NoError(t, err)
	assert.Equal(t, 4500000000.5, tvl)

	sent := fake.params()
	assert.Equal(t, "2023-07-24 00:00:00", sent["start_date"])
	assert.Equal(t, "2023-07-31 00:00:00", sent["end_date"])
	assert.Equal(t, "1200.5", sent["sol_start_deposits"])
	assert.Equal(t, "1300", sent["sol_end_deposits"])
	assert.GreaterOrEqual(t, fake.statusCalls.Load(), int32(2))
}

func TestLoaderFailedExecution(t *testing.T) {
	fake := &fakeDune{finalState: StateFailed}
	srv := httptest.NewServer(fake.handler(t))
	defer srv.Close()

	client := NewClient(ClientConfig{APIKey: "test-key", BaseURL: srv.URL}, nil)
	loader := NewLoader(LoaderConfig{
		Queries:      map[string]int{"tvl": 1},
		PollInterval: 5 * time.Millisecond,
	}, client, nil)

	_, err := loader.Load(context.Background(), Params{})
	require.Error(t, err)
	assert.ErrorContains(t, err, "load tvl")
	assert.ErrorContains(t, err, StateFailed)
}

func TestLoaderNoQueries(t *testing.T) {
	loader := NewLoader(LoaderConfig{}, NewClient(ClientConfig{}, nil), nil)
	_, err := loader.Load(context.Background(), Params{})
	assert.Error(t, err)
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"state":"QUERY_STATE_EXECUTING"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, MaxRetries: 2, RetryBackoff: time.Millisecond}, nil)
	exec, err := client.Status(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, StateExecuting, exec.State)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":"invalid API Key"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
	_, err := client.Execute(context.Background(), 7, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "invalid API Key", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load())
}

func TestExecuteDoesNotRetryAcceptedSubmission(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
	}{
		{name: "truncated body", status: http.StatusOK, body: `{"execution_id":"ex`},
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var posts atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				posts.Add(1)
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			client := NewClient(ClientConfig{BaseURL: srv.URL, MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
			_, err := client.Execute(context.Background(), 7, nil)
			require.Error(t, err)
			assert.Equal(t, int32(1), posts.Load())
		})
	}
}

func TestExecuteRetriesRateLimit(t *testing.T) {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if posts.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"execution_id":"exec-7","state":"QUERY_STATE_PENDING"}`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
	id, err := client.Execute(context.Background(), 7, nil)
	require.NoError(t, err)
	assert.Equal(t, "exec-7", id)
	assert.Equal(t, int32(2), posts.Load())
}

func TestStatusDoesNotRetryDecodeErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Write([]byte(`{"state":`))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{BaseURL: srv.URL, MaxRetries: 3, RetryBackoff: time.Millisecond}, nil)
	_, err := client.Status(context.Background(), "abc")
	assert.ErrorContains(t, err, "decode response")
	assert.Equal(t, int32(1), calls.Load())
}

func TestRetryClassification(t *testing.T) {
	dialErr := &transportError{err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}}
	readErr := &transportError{err: &net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset")}}

	assert.True(t, isRetryable(dialErr))
	assert.True(t, isRetryable(readErr))
	assert.True(t, isRetryable(&APIError{StatusCode: http.StatusBadGateway}))
	assert.False(t, isRetryable(&decodeError{err: errors.New("unexpected EOF")}))
	assert.False(t, isRetryable(context.Canceled))

	assert.True(t, isRetryableSubmit(dialErr))
	assert.False(t, isRetryableSubmit(readErr))
	assert.True(t, isRetryableSubmit(&APIError{StatusCode: http.StatusTooManyRequests}))
	assert.False(t, isRetryableSubmit(&APIError{StatusCode: http.StatusBadGateway}))
	assert.False(t, isRetryableSubmit(&decodeError{err: errors.New("unexpected EOF")}))
}
