package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coregx/notify/model"
)

func testClient(baseURL string) *Client {
	return New(Config{
		BaseURL:    baseURL,
		Rows:       10,
		Attempts:   3,
		RetryDelay: time.Millisecond,
	}, nil)
}

func TestQuery(t *testing.T) {
	q := Query(model.SearchParams{
		Term: "transit",
		Facets: map[string][]string{
			"topics":    {"Zoning", "Budget"},
			"bill_type": {"Ordinance"},
		},
	}, time.Time{}, 50)

	assert.Equal(t, "transit", q.Get("q"))
	assert.Equal(t, []string{`bill_type:"Ordinance"`, `topics:("Budget" OR "Zoning")`}, q["fq"])
	assert.Equal(t, "ocd_id", q.Get("fl"))
	assert.Equal(t, "json", q.Get("wt"))
	assert.Equal(t, "50", q.Get("rows"))
	assert.Equal(t, "created_at desc", q.Get("sort"))
}

func TestQuery_SinceFiltersOnCreationDate(t *testing.T) {
	since := time.Date(2024, 5, 1, 14, 30, 15, 500, time.FixedZone("CDT", -5*3600))

	q := Query(model.SearchParams{Facets: map[string][]string{"topics": {"Budget"}}}, since, 500)

	assert.Equal(t, MatchAll, q.Get("q"))
	assert.Equal(t, []string{`topics:"Budget"`, "created_at:[2024-05-01T19:30:15Z TO *]"}, q["fq"])
	assert.Equal(t, "created_at desc", q.Get("sort"))
}

func TestQuery_EmptyTermMatchesAll(t *testing.T) {
	q := Query(model.SearchParams{}, time.Time{}, 10)

	assert.Equal(t, MatchAll, q.Get("q"))
	assert.Empty(t, q["fq"])
}

func TestClient_Unconfigured(t *testing.T) {
	c := testClient("")

	assert.False(t, c.Configured())
	_, err := c.SearchBillIDs(context.Background(), model.SearchParams{Term: "x"}, time.Time{})
	assert.True(t, errors.Is(err, ErrUnconfigured))
}

func TestClient_SearchBillIDs(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/select", r.URL.Path)
		assert.Equal(t, "parks", r.URL.Query().Get("q"))
		assert.Equal(t, []string{"created_at:[2024-05-01T12:00:00Z TO *]"}, r.URL.Query()["fq"])
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":{"numFound":2,"docs":[{"ocd_id":"ocd-bill/2"},{"ocd_id":"ocd-bill/1"},{}]}}`))
	}))
	defer srv.Close()

	ids, err := testClient(srv.URL+"/").SearchBillIDs(context.Background(), model.SearchParams{Term: "parks"},
		time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.Equal(t, []string{"ocd-bill/2", "ocd-bill/1"}, ids)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"response":{"docs":[{"ocd_id":"ocd-bill/9"}]}}`))
	}))
	defer srv.Close()

	ids, err := testClient(srv.URL).SearchBillIDs(context.Background(), model.SearchParams{}, time.Time{})

	require.NoError(t, err)
	assert.Equal(t, []string{"ocd-bill/9"}, ids)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).SearchBillIDs(context.Background(), model.SearchParams{Term: "x"}, time.Time{})

	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
