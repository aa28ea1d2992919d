package ingest

import "encoding/json"

const (
	MethodSubscription = "SUBSCRIPTION"
	MethodPing         = "PING"

	// DefaultChannelPrefix selects the public spot trade (deals) stream.
	DefaultChannelPrefix = "spot@public.deals.v3.api@"
)

// SubscriptionMessage subscribes a connection to a list of channels.
type SubscriptionMessage struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
}

// PingMessage is the application-level keep-alive.
type PingMessage struct {
	Method string `json:"method"`
}

// NewSubscription builds the subscription for symbols, one channel per
// symbol, in the given order.
func NewSubscription(prefix string, symbols []string) SubscriptionMessage {
	if prefix == "" {
		prefix = DefaultChannelPrefix
	}
	params := make([]string, len(symbols))
	for i, s := range symbols {
		params[i] = prefix + s
	}
	return SubscriptionMessage{Method: MethodSubscription, Params: params}
}

func encodePing() []byte {
	b, _ := json.Marshal(PingMessage{Method: MethodPing})
	return b
}
