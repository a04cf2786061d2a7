package router

import "encoding/json"

// Control message discriminator values. The field names below are
// wire-compatibility-critical: threadXMessageType and __asyncMsgId must
// spell exactly this, so a peer implementation built against the same
// contract, in any language, decodes them without translation.
const (
	msgReady            = "ready"
	msgShareObjects     = "shareObjects"
	msgForgetObjects    = "forgetObjects"
	msgSharedObjectEmit = "sharedObjectEmit"
	msgResponse         = "response"
	msgClose            = "close"
)

// envelope is the wire shape of every message a Router posts. Type ==""
// marks a user message (arbitrary payload in Data, routed to onMessage);
// any of the six msg* constants marks a control message.
type envelope struct {
	Type           string          `json:"threadXMessageType"`
	AsyncMsgID     *int64          `json:"__asyncMsgId,omitempty"`
	Error          bool            `json:"error,omitempty"`
	Data           json.RawMessage `json:"data,omitempty"`
	Buffers        [][]byte        `json:"buffers,omitempty"`
	ObjectIDs      []float64       `json:"objectIds,omitempty"`
	SharedObjectID float64         `json:"sharedObjectId,omitempty"`
	EventName      string          `json:"eventName,omitempty"`
}

func encodeEnvelope(e envelope) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEnvelope(raw []byte) (envelope, error) {
	var e envelope
	err := json.Unmarshal(raw, &e)
	return e, err
}

func marshalData(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(b), nil
}

func unmarshalData[T any](raw json.RawMessage) (T, error) {
	var v T
	if len(raw) == 0 {
		return v, nil
	}
	err := json.Unmarshal(raw, &v)
	return v, err
}
