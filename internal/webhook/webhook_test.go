package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCall_SuccessOn2xx(t *testing.T) {
	var gotMethod, gotContentType string
	var gotBody []byte

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotContentType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New()
	err := c.Call(context.Background(), srv.URL, "", json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, "POST", gotMethod)
	assert.Equal(t, "application/json", gotContentType)
	assert.JSONEq(t, `{"a":1}`, string(gotBody))
}

func TestCall_NonDefaultMethodWithoutBody(t *testing.T) {
	var gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := New()
	err := c.Call(context.Background(), srv.URL, "GET", nil)
	require.NoError(t, err)
	assert.Equal(t, "GET", gotMethod)
}

func TestCall_NonTwoXXReturnsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New()
	err := c.Call(context.Background(), srv.URL, "POST", nil)
	assert.Error(t, err)
}

func TestCall_ConnectionFailureReturnsError(t *testing.T) {
	c := New()
	err := c.Call(context.Background(), "http://127.0.0.1:1", "POST", nil)
	assert.Error(t, err)
}
