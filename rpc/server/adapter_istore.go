package server

import (
	"context"
	"fmt"
	"time"

	"github.com/ValentinKolb/memKV/lib/store"
	"github.com/ValentinKolb/memKV/rpc/common"
)

// NewIStoreServerAdapter creates an adapter translating RPC requests into
// store.IStore calls. Persist requests are bounded by timeout (no bound if
// timeout is zero).
func NewIStoreServerAdapter(timeout time.Duration) IRPCServerAdapter {
	return &iStoreServerAdapterImpl{timeout: timeout}
}

type iStoreServerAdapterImpl struct {
	timeout time.Duration
}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, st store.IStore) *common.Message {
	// Check for nil store
	if st == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTStore:
		value, opts, err := req.StoreArgs()
		if err != nil {
			return common.NewErrorResponse(err.Error())
		}
		return common.NewResultResponse(req.MsgType, st.Store(req.Key, value, opts))
	case common.MsgTRetrieve:
		return common.NewResultResponse(req.MsgType, st.Retrieve(req.Key, req.Namespace))
	case common.MsgTPersist:
		ctx, cancel := adapter.context()
		defer cancel()
		return common.NewResultResponse(req.MsgType, st.Persist(ctx, req.PersistArgs()))
	case common.MsgTClear:
		return common.NewResultResponse(req.MsgType, st.Clear(req.Namespace))
	case common.MsgTStats:
		return common.NewResultResponse(req.MsgType, st.Stats())
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// context returns the context a persist request runs with
func (adapter *iStoreServerAdapterImpl) context() (context.Context, context.CancelFunc) {
	if adapter.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), adapter.timeout)
}
