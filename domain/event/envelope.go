package event

import "encoding/json"

// Envelope is the wire shape of every outbound message.
type Envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

// Encode serializes an event once; broadcast hands the same frame to every
// subscriber.
func Encode(e Outbound) ([]byte, error) {
	return json.Marshal(Envelope{Kind: e.Kind(), Payload: e.Payload()})
}
