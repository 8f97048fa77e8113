package client

import (
	"context"
	"time"

	"github.com/ValentinKolb/memKV/lib/store"
	"github.com/ValentinKolb/memKV/lib/table"
	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/ValentinKolb/memKV/rpc/serializer"
	"github.com/ValentinKolb/memKV/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a client config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	err := transport.Connect(config)
	if err != nil {
		return nil, err
	}

	// Create a new RPC store
	s := rpcStore{
		rpcClientAdapter{
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}

	// Return the RPC store
	return &s, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Store(key string, value any, opts store.StoreOptions) (res store.StoreResult) {
	req, err := common.NewStoreRequest(key, value, opts)
	if err != nil {
		res.Result = store.Fail(time.Now(), store.WrapError(store.RetCInvalidArgument, err, "value is not serializable"))
		return res
	}
	i.call(context.Background(), req, &res, &res.Result)
	return res
}

func (i *rpcStore) Retrieve(key, namespace string) (res store.RetrieveResult) {
	i.call(context.Background(), common.NewRetrieveRequest(key, namespace), &res, &res.Result)
	res.Value = table.ConvertNumbers(res.Value)
	if res.Metadata != nil {
		res.Metadata = table.ConvertNumbers(res.Metadata).(map[string]any)
	}
	return res
}

func (i *rpcStore) Persist(ctx context.Context, req store.PersistRequest) (res store.PersistResult) {
	i.call(ctx, common.NewPersistRequest(req), &res, &res.Result)
	return res
}

func (i *rpcStore) Clear(namespace string) (res store.ClearResult) {
	i.call(context.Background(), common.NewClearRequest(namespace), &res, &res.Result)
	return res
}

func (i *rpcStore) Stats() (res store.StatsResult) {
	i.call(context.Background(), common.NewStatsRequest(), &res, &res.Result)
	return res
}

// Destroy closes the connection to the server, the remote store is left untouched
func (i *rpcStore) Destroy() error {
	return i.transport.Close()
}

// --------------------------------------------------------------------------
// Helper Methods
// --------------------------------------------------------------------------

// call sends req and decodes the typed result into out. A failed round trip
// is reported through base (the Result embedded in out) as RetCInternalError.
func (i *rpcStore) call(ctx context.Context, req *common.Message, out any, base *store.Result) {
	resp, err := invokeRPCRequest(ctx, req, i.transport, i.serializer)
	if err == nil {
		err = resp.DecodeResult(out)
	}
	if err != nil {
		Logger.Debugf("%s request failed: %v", req.MsgType, err)
		*base = store.Fail(time.Now(), store.WrapError(store.RetCInternalError, err, "rpc request failed"))
	}
}
