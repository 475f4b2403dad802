package core

import "encoding/json"

// Frame is a marshaled outbound event.
type Frame []byte

// SignalConnection abstracts a system messaging transport.
// Owned by the adapter; the adapter must Close() it.
type SignalConnection interface {
	TrySend(Frame) error
	Close()
}

// Envelope is the wire shape of every event in both directions.
// Ack is non-zero when the sender awaits an acknowledgement; the reply
// carries the same Ack under event "ack".
type Envelope struct {
	Event string          `json:"event"`
	Ack   uint64          `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Encode marshals an event frame.
func Encode(event string, data any) (Frame, error) {
	env := Envelope{Event: event}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = b
	}
	return json.Marshal(env)
}

// EncodeAck marshals an acknowledgement frame for the given ack id.
func EncodeAck(ack uint64, data any) (Frame, error) {
	env := Envelope{Event: "ack", Ack: ack}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return nil, err
		}
		env.Data = b
	}
	return json.Marshal(env)
}
