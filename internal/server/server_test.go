package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stayscope/stayscope-cli/internal/diff"
	"github.com/stayscope/stayscope-cli/internal/model"
	"github.com/stayscope/stayscope-cli/internal/store"
)

// fakeStore is an in-memory Store for handler tests.
type fakeStore struct {
	snapshots map[string]*model.Snapshot
	results   map[model.ResultKey]*model.AIResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snapshots: make(map[string]*model.Snapshot),
		results:   make(map[model.ResultKey]*model.AIResult),
	}
}

func (f *fakeStore) CommitSnapshot(ctx context.Context, snap *model.Snapshot) error {
	f.snapshots[snap.ID] = snap
	return nil
}

func (f *fakeStore) GetSnapshot(ctx context.Context, id string) (*model.Snapshot, error) {
	snap, ok := f.snapshots[id]
	if !ok {
		return nil, eris.New("snapshot not found")
	}
	return snap, nil
}

func (f *fakeStore) ListSnapshots(ctx context.Context, filter store.SnapshotFilter) ([]model.Snapshot, error) {
	var out []model.Snapshot
	for _, sn := range f.snapshots {
		if filter.SearchName == "" || sn.SearchName == filter.SearchName {
			out = append(out, *sn)
		}
	}
	return out, nil
}

func (f *fakeStore) LatestSnapshots(ctx context.Context, searchName string, n int) ([]model.Snapshot, error) {
	return f.ListSnapshots(ctx, store.SnapshotFilter{SearchName: searchName, Limit: n})
}

func (f *fakeStore) GetAIResult(ctx context.Context, key model.ResultKey) (*model.AIResult, error) {
	return f.results[key], nil
}

func (f *fakeStore) PutAIResult(ctx context.Context, result *model.AIResult) error {
	f.results[result.Key] = result
	return nil
}

func (f *fakeStore) HasAIResult(ctx context.Context, listingID, promptVersion, modelName string) (bool, error) {
	for k := range f.results {
		if k.ListingID == listingID && k.PromptVersion == promptVersion && k.Model == modelName {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) Migrate(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                      { return nil }

func newTestServer(t *testing.T) (*httptest.Server, *fakeStore) {
	t.Helper()
	st := newFakeStore()
	srv := httptest.NewServer(New(st, diff.CurrencyRates{"EUR": 1}).Router())
	t.Cleanup(srv.Close)
	return srv, st
}

func get(t *testing.T, url string, into any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if into != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
	}
	return resp.StatusCode
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	var body map[string]string
	code := get(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body["status"])
}

func TestListSnapshots_ReturnsHeadersOnly(t *testing.T) {
	srv, st := newTestServer(t)
	st.snapshots["s1"] = &model.Snapshot{
		ID:         "s1",
		SearchName: "rome-center",
		TakenAt:    time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC),
		Listings:   []model.ListingRecord{{ID: "l1"}, {ID: "l2"}},
	}

	var body []map[string]any
	code := get(t, srv.URL+"/v1/snapshots", &body)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body, 1)
	assert.Equal(t, "s1", body[0]["id"])
	assert.Equal(t, float64(2), body[0]["listings"])
}

func TestGetSnapshot(t *testing.T) {
	srv, st := newTestServer(t)
	st.snapshots["s1"] = &model.Snapshot{ID: "s1", Listings: []model.ListingRecord{{ID: "l1", Currency: "EUR"}}}

	var snap model.Snapshot
	code := get(t, srv.URL+"/v1/snapshots/s1", &snap)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "s1", snap.ID)
	require.Len(t, snap.Listings, 1)

	code = get(t, srv.URL+"/v1/snapshots/missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGetListing(t *testing.T) {
	srv, st := newTestServer(t)
	st.snapshots["s1"] = &model.Snapshot{ID: "s1", Listings: []model.ListingRecord{{ID: "l1", Name: "Casa"}}}

	var listing model.ListingRecord
	code := get(t, srv.URL+"/v1/snapshots/s1/listings/l1", &listing)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Casa", listing.Name)

	code = get(t, srv.URL+"/v1/snapshots/s1/listings/other", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestDiffEndpoint(t *testing.T) {
	srv, st := newTestServer(t)
	st.snapshots["s1"] = &model.Snapshot{ID: "s1", Listings: []model.ListingRecord{
		{ID: "l1", NightlyPrice: 100, Currency: "EUR"},
	}}
	st.snapshots["s2"] = &model.Snapshot{ID: "s2", Listings: []model.ListingRecord{
		{ID: "l1", NightlyPrice: 80, Currency: "EUR"},
		{ID: "l2", NightlyPrice: 60, Currency: "EUR"},
	}}

	var delta diff.Delta
	code := get(t, srv.URL+"/v1/diff?from=s1&to=s2", &delta)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, delta.Count(diff.KindNew))
	assert.Equal(t, 1, delta.Count(diff.KindChanged))

	code = get(t, srv.URL+"/v1/diff?from=s1", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code = get(t, srv.URL+"/v1/diff?from=s1&to=missing", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGetResult(t *testing.T) {
	srv, st := newTestServer(t)
	key := model.ResultKey{ListingID: "l1", Fingerprint: "fp", PromptVersion: "rating-v1", Model: "m"}
	st.results[key] = &model.AIResult{Key: key, Rating: &model.RatingResult{Score: 4.5}}

	var result model.AIResult
	code := get(t, srv.URL+"/v1/results?listing_id=l1&fingerprint=fp&prompt_version=rating-v1&model=m", &result)
	require.Equal(t, http.StatusOK, code)
	require.NotNil(t, result.Rating)
	assert.Equal(t, 4.5, result.Rating.Score)

	code = get(t, srv.URL+"/v1/results?listing_id=l1&fingerprint=other&prompt_version=rating-v1&model=m", nil)
	assert.Equal(t, http.StatusNotFound, code)

	code = get(t, srv.URL+"/v1/results?listing_id=l1", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}
