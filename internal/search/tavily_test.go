package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchPrependsProviderAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, true, req["include_answer"])
		assert.Equal(t, "advanced", req["search_depth"])

		_ = json.NewEncoder(w).Encode(Response{
			Answer: "short summary",
			Results: []Result{
				{Title: "One", Content: "c1", URL: "https://one.example"},
			},
		})
	}))
	defer srv.Close()

	res, err := NewClient(srv.URL, "tv-key").Search(context.Background(), "go generics", false, false)
	require.NoError(t, err)
	require.Len(t, res.Results, 2)
	assert.Equal(t, "AI Generated Answer", res.Results[0].Title)
	assert.Equal(t, "short summary", res.Results[0].Content)
	assert.Equal(t, "One", res.Results[1].Title)
}

func TestSearchSurfacesProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message":"bad key"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "tv-key").Search(context.Background(), "q", false, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}

func TestFormatResults(t *testing.T) {
	got := FormatResults([]Result{
		{Title: "A", Content: "alpha", URL: "https://a.example"},
		{Title: "B", Content: "beta", URL: "https://b.example"},
	})
	want := "[Source 1]: A\nalpha\nURL: https://a.example\n\n[Source 2]: B\nbeta\nURL: https://b.example"
	assert.Equal(t, want, got)
}

func TestFormatResultsEmpty(t *testing.T) {
	assert.Equal(t, "", FormatResults(nil))
}
