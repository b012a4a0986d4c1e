package vuser_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jihwankim/loadsmith/pkg/vuser"
)

func TestResponse_JSONCachesAfterFirstParse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"count": 3}`))
	}))
	defer srv.Close()

	ctx, err := vuser.NewContext(vuser.Options{BaseURL: srv.URL, OpenTimeout: time.Second, ReadTimeout: time.Second})
	require.NoError(t, err)

	resp := ctx.Get(context.Background(), "/x")

	v1, err1 := resp.JSON()
	require.NoError(t, err1)
	m1 := v1.(map[string]interface{})
	assert.Equal(t, float64(3), m1["count"])

	v2, err2 := resp.JSON()
	require.NoError(t, err2)
	assert.Equal(t, v1, v2, "second JSON() call must return the cached value")
}

func TestResponse_JSONOnTransportFailureIsEmptyObject(t *testing.T) {
	ctx, err := vuser.NewContext(vuser.Options{BaseURL: "http://127.0.0.1:1", OpenTimeout: 20 * time.Millisecond, ReadTimeout: 20 * time.Millisecond})
	require.NoError(t, err)

	resp := ctx.Get(context.Background(), "/x")
	v, err := resp.JSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, v)
}

func TestResponse_JSONOnMalformedBodyIsEmptyObject(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	ctx, err := vuser.NewContext(vuser.Options{BaseURL: srv.URL, OpenTimeout: time.Second, ReadTimeout: time.Second})
	require.NoError(t, err)

	resp := ctx.Get(context.Background(), "/x")
	v, err := resp.JSON()
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, v)
}

func TestResponse_BindJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"name":"widget","qty":5}`))
	}))
	defer srv.Close()

	ctx, err := vuser.NewContext(vuser.Options{BaseURL: srv.URL, OpenTimeout: time.Second, ReadTimeout: time.Second})
	require.NoError(t, err)
	resp := ctx.Get(context.Background(), "/x")

	var out struct {
		Name string `json:"name"`
		Qty  int    `json:"qty"`
	}
	require.NoError(t, resp.BindJSON(&out))
	assert.Equal(t, "widget", out.Name)
	assert.Equal(t, 5, out.Qty)
}
