package client

import (
	"context"

	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/ValentinKolb/memKV/rpc/serializer"
	"github.com/ValentinKolb/memKV/rpc/transport"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter bundles what every RPC client needs to reach a server
type rpcClientAdapter struct {
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invokeRPCRequest performs one round trip: serialize req, send it and decode
// the answer. Error responses and answers whose type does not match the
// request are returned as errors.
func invokeRPCRequest(ctx context.Context, req *common.Message, t transport.IRPCClientTransport, s serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := s.Serialize(*req)
	if err != nil {
		return nil, errors.Wrapf(err, "serialize %s request", req.MsgType)
	}

	respBytes, err := t.Send(ctx, reqBytes)
	if err != nil {
		return nil, errors.Wrapf(err, "send %s request", req.MsgType)
	}

	resp := &common.Message{}
	if err = s.Deserialize(respBytes, resp); err != nil {
		return nil, errors.Wrapf(err, "decode %s response", req.MsgType)
	}

	// the server answers with MsgTError when it could not process the request
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		return nil, errors.Errorf("server error: %s", resp.Err)
	}
	if resp.MsgType != req.MsgType {
		return nil, errors.Errorf("unexpected response type %s for %s request", resp.MsgType, req.MsgType)
	}

	return resp, nil
}
