package diag

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jkennedy-usgs/sdi12wsn/pkg/registry"
	"github.com/jkennedy-usgs/sdi12wsn/pkg/sdi12"
)

type fakeStatusSource struct {
	state    sdi12.State
	addr     uint8
	ok       bool
	followUp bool
}

func (f fakeStatusSource) State() sdi12.State            { return f.state }
func (f fakeStatusSource) PendingAddress() (uint8, bool) { return f.addr, f.ok }
func (f fakeStatusSource) AwaitingDataFollowUp() bool    { return f.followUp }

func TestStatusEndpointReportsState(t *testing.T) {
	src := fakeStatusSource{state: sdi12.WaitSRQ, addr: 3, ok: true}
	srv := New(src, registry.New(4), nil)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "WaitSRQ", got.State)
	assert.EqualValues(t, 3, got.RequestAddr)
	assert.True(t, got.RequestActive)
}

func TestNodesEndpointReportsRegistrySnapshot(t *testing.T) {
	reg := registry.New(4)
	require.NoError(t, reg.Add(7, registry.Identifier{SerialHigh: 1, SerialLow: 2}, 9))
	require.NoError(t, reg.RecordSample(7, 0, 300, true))

	srv := New(fakeStatusSource{}, reg, nil)

	req := httptest.NewRequest(http.MethodGet, "/nodes", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got []nodeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got, 1)
	assert.EqualValues(t, 7, got[0].Addr)
	assert.EqualValues(t, 300, got[0].ProbeAvgs[0])
}

func TestMethodNotAllowedOnPost(t *testing.T) {
	srv := New(fakeStatusSource{}, registry.New(4), nil)

	req := httptest.NewRequest(http.MethodPost, "/status", nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
