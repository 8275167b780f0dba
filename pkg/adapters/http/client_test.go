package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gnueaj/SAE-vis-sub000"
	"github.com/gnueaj/SAE-vis-sub000/internal/testutils"
	api "github.com/gnueaj/SAE-vis-sub000/pkg/adapters/http"
	"github.com/gnueaj/SAE-vis-sub000/pkg/adapters/memory"
	"github.com/gnueaj/SAE-vis-sub000/pkg/domain"
	"github.com/gnueaj/SAE-vis-sub000/pkg/ports"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ ports.MetricGroupProvider = (*api.Client)(nil)
	_ ports.MetricValueSource   = (*api.Client)(nil)
)

// dataService serves a memory table over the wire format the client speaks.
func dataService(t *testing.T, table *memory.Table) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Post("/feature-groups", func(w http.ResponseWriter, r *http.Request) {
		var req domain.GroupRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		groups, err := table.Groups(r.Context(), req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusUnprocessableEntity)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"groups": groups})
	})
	r.Post("/population", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Filters domain.FilterSpec `json:"filters"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		ids, _ := table.Population(r.Context(), req.Filters)
		_ = json.NewEncoder(w).Encode(map[string]any{"feature_ids": ids})
	})
	r.Post("/feature-values", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Metric string `json:"metric"`
			IDs    []int  `json:"feature_ids"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		vals, _ := table.Values(r.Context(), req.Metric, req.IDs)
		_ = json.NewEncoder(w).Encode(map[string]any{"values": vals})
	})
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_RoundTrips(t *testing.T) {
	srv := dataService(t, testutils.RangeTable())
	client := api.NewClient(srv.URL+"/", api.WithTimeout(5*time.Second))
	ctx := context.Background()

	groups, err := client.Groups(ctx, domain.GroupRequest{Metric: "m", Thresholds: []float64{0.3}})
	require.NoError(t, err)
	require.Len(t, groups, 2)
	assert.Equal(t, []int{1, 2}, groups[0].MemberIDs)
	assert.Equal(t, 3, groups[1].Count)

	ids, err := client.Population(ctx, domain.FilterSpec{ItemIDs: []int{4, 5}})
	require.NoError(t, err)
	assert.Equal(t, []int{4, 5}, ids)

	vals, err := client.Values(ctx, "m", []int{1, 5})
	require.NoError(t, err)
	assert.Equal(t, map[int]float64{1: 0.1, 5: 0.9}, vals)
}

func TestClient_ErrorStatusIsReported(t *testing.T) {
	srv := dataService(t, testutils.RangeTable())
	client := api.NewClient(srv.URL)

	_, err := client.Groups(context.Background(), domain.GroupRequest{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "422")
	assert.Contains(t, err.Error(), "metric is required")
}

func TestClient_DrivesEngine(t *testing.T) {
	srv := dataService(t, testutils.ScoreTable())
	eng, err := saevis.New(saevis.WithProvider(api.NewClient(srv.URL)))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = eng.NewTree(ctx, "remote")
	require.NoError(t, err)
	tree, err := eng.AddStage(ctx, "remote", domain.RootID, domain.StageConfig{
		Split: domain.SplitSpec{Type: domain.SplitPercentile, Metric: "score_fuzz", NumBins: 2},
	})
	require.NoError(t, err)
	testutils.RequireValidTree(t, tree)
	assert.NotNil(t, tree.Root().Bridge, "the client doubles as a value source")
}

func TestClient_TimeoutLeavesCallerClientUnchanged(t *testing.T) {
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(map[string]any{"feature_ids": []int{1}})
	}))
	t.Cleanup(slow.Close)

	for name, order := range map[string]func(*http.Client) []api.ClientOption{
		"timeout first": func(hc *http.Client) []api.ClientOption {
			return []api.ClientOption{api.WithTimeout(50 * time.Millisecond), api.WithHTTPClient(hc)}
		},
		"client first": func(hc *http.Client) []api.ClientOption {
			return []api.ClientOption{api.WithHTTPClient(hc), api.WithTimeout(50 * time.Millisecond)}
		},
	} {
		t.Run(name, func(t *testing.T) {
			caller := &http.Client{Timeout: 5 * time.Second}
			client := api.NewClient(slow.URL, order(caller)...)

			_, err := client.Population(context.Background(), domain.FilterSpec{})
			require.Error(t, err)
			assert.Equal(t, 5*time.Second, caller.Timeout)
		})
	}
}
