package serializer

import (
	"encoding/json"

	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/pkg/errors"
)

// NewJSONSerializer creates a serializer that writes messages as JSON objects.
// The value, metadata and result payloads are already JSON and are embedded
// base64 encoded, so the output stays readable for debugging with curl.
func NewJSONSerializer() IRPCSerializer {
	return jsonSerializerImpl{}
}

type jsonSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (jsonSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrapf(err, "json: encode %s", msg.MsgType)
	}
	return data, nil
}

func (jsonSerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	*msg = common.Message{}
	if err := json.Unmarshal(data, msg); err != nil {
		return errors.Wrap(err, "json: decode message")
	}
	return nil
}
