package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchJSONDecodesBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price": 12.5}`))
	}))
	defer ts.Close()

	var out struct {
		Price float64 `json:"price"`
	}
	require.NoError(t, FetchJSON(context.Background(), ts.URL, &out))
	assert.Equal(t, 12.5, out.Price)
}

func TestFetchJSONErrorStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	err := FetchJSON(context.Background(), ts.URL, nil)
	assert.Error(t, err)
}
