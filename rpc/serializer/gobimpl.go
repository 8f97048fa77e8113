package serializer

import (
	"bytes"
	"encoding/gob"

	"github.com/ValentinKolb/memKV/rpc/common"
	"github.com/pkg/errors"
)

// NewGOBSerializer creates a serializer based on encoding/gob. Every message is
// encoded with a fresh encoder, so each payload carries its own type description.
func NewGOBSerializer() IRPCSerializer {
	return gobSerializerImpl{}
}

type gobSerializerImpl struct{}

// --------------------------------------------------------------------------
// Interface Methods (docu see serializer.IRPCSerializer)
// --------------------------------------------------------------------------

func (gobSerializerImpl) Serialize(msg common.Message) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(msg); err != nil {
		return nil, errors.Wrapf(err, "gob: encode %s", msg.MsgType)
	}
	return buf.Bytes(), nil
}

func (gobSerializerImpl) Deserialize(data []byte, msg *common.Message) error {
	*msg = common.Message{}
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(msg); err != nil {
		return errors.Wrap(err, "gob: decode message")
	}
	return nil
}
