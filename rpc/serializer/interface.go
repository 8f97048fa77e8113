package serializer

import "github.com/ValentinKolb/memKV/rpc/common"

// IRPCSerializer converts messages to and from their wire representation.
// Implementations are stateless and used by client and server alike.
type IRPCSerializer interface {
	// Serialize encodes msg into a newly allocated byte slice.
	Serialize(msg common.Message) ([]byte, error)
	// Deserialize decodes b into msg. Fields not present in b are left at
	// their zero value.
	Deserialize(b []byte, msg *common.Message) error
}
