package apitest

import (
	"bytes"
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/atinyakov/chemora/internal/client/api"
	"github.com/atinyakov/chemora/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_LoginAndProtectedRoutes(t *testing.T) {
	srv := New()
	defer srv.Close()
	c := api.New(srv.BaseURL(), srv.Client(), nil)
	ctx := context.Background()

	require.NoError(t, c.Login(ctx, models.Credential{Username: "admin", Password: "admin"}))
	assert.Equal(t, api.KindAuth, api.KindOf(c.Login(ctx, models.Credential{Username: "admin", Password: "nope"})))

	_, err := c.Datasets(ctx, api.NoAuth)
	assert.Equal(t, api.KindAuth, api.KindOf(err))

	list, err := c.Datasets(ctx, api.BasicAuth{Username: "admin", Password: "admin"})
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestServer_UploadKeepsFiveNewest(t *testing.T) {
	srv := New()
	defer srv.Close()
	c := api.New(srv.BaseURL(), srv.Client(), nil)
	auth := api.BasicAuth{Username: "admin", Password: "admin"}
	ctx := context.Background()

	csv := "Equipment Name,Type,Flowrate,Pressure,Temperature\nP-1,Pump,10,2,50\nV-1,Valve,4,1,30\n"
	var last int64
	for i := 0; i < 6; i++ {
		res, err := c.Upload(ctx, auth, "plant.csv", "text/csv", bytes.NewBufferString(csv))
		require.NoError(t, err)
		last = res.DatasetID
	}

	list, err := c.Datasets(ctx, auth)
	require.NoError(t, err)
	require.Len(t, list, models.MaxDatasets)
	assert.Equal(t, last, list[0].ID)
	assert.Equal(t, int64(2), list[len(list)-1].ID)

	sum, err := c.Summary(ctx, auth, last)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.TotalCount)
	assert.InDelta(t, 7.0, sum.AvgFlowrate, 1e-9)
	assert.Equal(t, []string{"Pump", "Valve"}, sum.TypeDistribution.Keys())
}

func TestServer_UploadMissingColumn(t *testing.T) {
	srv := New()
	defer srv.Close()
	c := api.New(srv.BaseURL(), srv.Client(), nil)

	_, err := c.Upload(context.Background(), api.BasicAuth{Username: "admin", Password: "admin"},
		"plant.csv", "text/csv", bytes.NewBufferString("Equipment Name,Type,Flowrate,Pressure\nP-1,Pump,1,2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "columns")
}

func TestServer_EmptyDatasetSummary(t *testing.T) {
	srv := New()
	defer srv.Close()
	id := srv.Seed("admin", "empty.csv", nil)
	c := api.New(srv.BaseURL(), srv.Client(), nil)

	_, err := c.Summary(context.Background(), api.BasicAuth{Username: "admin", Password: "admin"}, id)
	assert.EqualError(t, err, "No equipment data found")
}

func TestServer_HoldAndFail(t *testing.T) {
	srv := New()
	defer srv.Close()
	c := api.New(srv.BaseURL(), srv.Client(), nil)
	auth := api.BasicAuth{Username: "admin", Password: "admin"}

	release := srv.Hold("/datasets/")
	done := make(chan error, 1)
	go func() {
		_, err := c.Datasets(context.Background(), auth)
		done <- err
	}()
	select {
	case <-done:
		t.Fatal("request finished while held")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	require.NoError(t, <-done)

	srv.FailWith("/datasets/", http.StatusInternalServerError)
	_, err := c.Datasets(context.Background(), auth)
	assert.Equal(t, api.KindServer, api.KindOf(err))
}
