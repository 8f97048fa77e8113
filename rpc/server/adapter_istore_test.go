package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ValentinKolb/memKV/lib/store"
	"github.com/ValentinKolb/memKV/lib/store/lstore"
	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) store.IStore {
	opts := lstore.DefaultOptions()
	opts.ExportDir = t.TempDir()
	s := lstore.NewLocalStore(opts)
	t.Cleanup(func() { _ = s.Destroy() })
	return s
}

func TestAdapterStoreAndRetrieve(t *testing.T) {
	adapter := NewIStoreServerAdapter(time.Second)
	s := newTestStore(t)

	req, err := common.NewStoreRequest("k", "v", store.StoreOptions{Namespace: "ns"})
	require.NoError(t, err)

	resp := adapter.Handle(req, s)
	require.Equal(t, common.MsgTStore, resp.MsgType, resp.Err)
	var stored store.StoreResult
	require.NoError(t, resp.DecodeResult(&stored))
	assert.True(t, stored.Success)

	resp = adapter.Handle(common.NewRetrieveRequest("k", "ns"), s)
	var got store.RetrieveResult
	require.NoError(t, resp.DecodeResult(&got))
	assert.True(t, got.Found())
	assert.Equal(t, "v", got.Value)
}

func TestAdapterReportsFailuresInResult(t *testing.T) {
	adapter := NewIStoreServerAdapter(0)
	s := newTestStore(t)

	resp := adapter.Handle(common.NewClearRequest(""), s)
	var cleared store.ClearResult
	require.NoError(t, resp.DecodeResult(&cleared))
	assert.False(t, cleared.Success)
	assert.Equal(t, store.RetCInvalidArgument, cleared.Code)
}

func TestAdapterErrors(t *testing.T) {
	adapter := NewIStoreServerAdapter(time.Second)
	s := newTestStore(t)

	resp := adapter.Handle(&common.Message{MsgType: common.MsgTUnknown}, s)
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Contains(t, resp.Err, "Unsupported message type")

	resp = adapter.Handle(common.NewStatsRequest(), nil)
	assert.Equal(t, common.MsgTError, resp.MsgType)

	// a value that is not valid JSON can not be decoded
	resp = adapter.Handle(&common.Message{MsgType: common.MsgTStore, Key: "k", Value: []byte("{")}, s)
	assert.Equal(t, common.MsgTError, resp.MsgType)
	assert.Contains(t, resp.Err, "failed to decode value")
}

func TestAdapterRejectsExportOutsideExportDir(t *testing.T) {
	adapter := NewIStoreServerAdapter(time.Second)
	s := newTestStore(t)

	target := filepath.Join(t.TempDir(), "victim", "file.txt")
	resp := adapter.Handle(common.NewPersistRequest(store.PersistRequest{
		Action:   store.ActionExport,
		FilePath: target,
	}), s)

	var res store.PersistResult
	require.NoError(t, resp.DecodeResult(&res))
	assert.False(t, res.Success)
	assert.Equal(t, store.RetCInvalidArgument, res.Code)
	_, err := os.Stat(filepath.Dir(target))
	assert.True(t, os.IsNotExist(err))
}

func TestAdapterKeepsLargeIntegers(t *testing.T) {
	adapter := NewIStoreServerAdapter(time.Second)
	s := newTestStore(t)

	req, err := common.NewStoreRequest("k", int64(9007199254740993), store.StoreOptions{})
	require.NoError(t, err)
	require.Equal(t, common.MsgTStore, adapter.Handle(req, s).MsgType)

	got := s.Retrieve("k", "")
	require.True(t, got.Found())
	assert.Equal(t, int64(9007199254740993), got.Value)
}
