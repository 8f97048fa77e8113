package server

import (
	"github.com/ValentinKolb/memKV/lib/store"
	"github.com/ValentinKolb/memKV/rpc/common"
)

// IRPCServerAdapter maps a decoded request onto a store call.
type IRPCServerAdapter interface {
	// Handle executes req against s and builds the response message.
	// Failures are reported inside the response (MsgTError or an
	// unsuccessful result), never as a nil response.
	Handle(req *common.Message, s store.IStore) (resp *common.Message)
}
