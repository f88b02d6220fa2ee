package hyperliquid

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fundsync/internal/venue"
)

type fundingFixture struct {
	Rate string
	Time int64
}

func newTestServer(t *testing.T, assets []Asset, history map[string][]fundingFixture) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req infoRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		switch req.Type {
		case requestTypeMeta:
			json.NewEncoder(w).Encode(Meta{Universe: assets})
		case requestTypeFundingHistory:
			var out []map[string]interface{}
			for _, e := range history[req.Coin] {
				if e.Time < req.StartTime {
					continue
				}
				if len(out) == pageLimit {
					break
				}
				out = append(out, map[string]interface{}{
					"coin":        req.Coin,
					"fundingRate": e.Rate,
					"premium":     "0.0",
					"time":        e.Time,
				})
			}
			json.NewEncoder(w).Encode(out)
		default:
			http.Error(w, "unknown type", http.StatusBadRequest)
		}
	}))
}

func TestListActivePerpetuals(t *testing.T) {
	srv := newTestServer(t, []Asset{
		{Name: "BTC"},
		{Name: "ETH"},
		{Name: "MATIC", IsDelisted: true},
	}, nil)
	defer srv.Close()

	adapter := NewAdapter(NewClient(srv.URL, nil))
	pairs, err := adapter.ListActivePerpetuals(context.Background())
	require.NoError(t, err)

	require.Len(t, pairs, 2)
	for _, p := range pairs {
		assert.Equal(t, 1, p.IntervalHours())
		assert.True(t, p.Trading)
	}
	assert.Equal(t, "BTC", pairs[0].Name())
	assert.Equal(t, "ETH", pairs[1].Name())
}

func TestListHistoryPaginatesForward(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	var fixtures []fundingFixture
	for i := 0; i < pageLimit+50; i++ {
		fixtures = append(fixtures, fundingFixture{
			Rate: "0.0000125",
			Time: base.Add(time.Duration(i) * time.Hour).UnixMilli(),
		})
	}

	srv := newTestServer(t, nil, map[string][]fundingFixture{"BTC": fixtures})
	defer srv.Close()

	adapter := NewAdapter(NewClient(srv.URL, nil))
	adapter.client.pager.SetLimit(1e6)

	obs, err := adapter.ListHistory(context.Background(), "BTC", base)
	require.NoError(t, err)

	require.Len(t, obs, pageLimit+50)
	for i := 1; i < len(obs); i++ {
		assert.True(t, obs[i].FundingTime.After(obs[i-1].FundingTime))
	}
}

func TestListHistoryDefaultsToEpoch(t *testing.T) {
	var gotStart int64 = -1
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req infoRequest
		json.NewDecoder(r.Body).Decode(&req)
		gotStart = req.StartTime
		json.NewEncoder(w).Encode([]FundingEvent{})
	}))
	defer srv.Close()

	adapter := NewAdapter(NewClient(srv.URL, nil))
	_, err := adapter.ListHistory(context.Background(), "BTC", time.Time{})
	require.NoError(t, err)

	assert.Equal(t, historyEpoch.UnixMilli(), gotStart)
}

func TestLatest(t *testing.T) {
	now := time.Now().Truncate(time.Hour)
	srv := newTestServer(t, nil, map[string][]fundingFixture{
		"ETH": {
			{Rate: "0.0000100", Time: now.Add(-2 * time.Hour).UnixMilli()},
			{Rate: "-0.0000200", Time: now.Add(-1 * time.Hour).UnixMilli()},
		},
	})
	defer srv.Close()

	adapter := NewAdapter(NewClient(srv.URL, nil))
	obs, err := adapter.Latest(context.Background(), "ETH")
	require.NoError(t, err)

	assert.Equal(t, "-0.00002", obs.Rate.String())
	assert.Equal(t, now.Add(-1*time.Hour).UTC(), obs.FundingTime)
}

func TestLatestEmpty(t *testing.T) {
	srv := newTestServer(t, nil, nil)
	defer srv.Close()

	adapter := NewAdapter(NewClient(srv.URL, nil))
	_, err := adapter.Latest(context.Background(), "GHOST")
	assert.ErrorIs(t, err, venue.ErrEmptyResult)
}
