// Package bus carries cross-tab broadcast messages for tab identity
// arbitration.
package bus

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ChannelName scopes the broadcast channel to this feature.
const ChannelName = "liebs-title"

const (
	TopicGetIdentity   = "getTitleTabId"
	TopicUsingIdentity = "usingTitleTabId"
)

// ErrUnknownTopic is returned by Decode for messages of other features.
var ErrUnknownTopic = errors.New("bus: unknown topic")

// Message is one of GetIdentityRequest or UsingIdentityReply.
type Message interface {
	Topic() string
}

// GetIdentityRequest asks every other tab which identity it is using.
type GetIdentityRequest struct{}

func (GetIdentityRequest) Topic() string { return TopicGetIdentity }

// UsingIdentityReply announces the sender's current identity.
type UsingIdentityReply struct {
	TitleTabID string
}

func (UsingIdentityReply) Topic() string { return TopicUsingIdentity }

type wireMessage struct {
	Topic      string `json:"topic"`
	TitleTabID string `json:"titleTabId,omitempty"`
}

// Encode marshals a message into its JSON wire shape.
func Encode(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case GetIdentityRequest:
		return json.Marshal(wireMessage{Topic: TopicGetIdentity})
	case UsingIdentityReply:
		return json.Marshal(wireMessage{Topic: TopicUsingIdentity, TitleTabID: m.TitleTabID})
	default:
		return nil, fmt.Errorf("bus: cannot encode %T", msg)
	}
}

// Decode parses a JSON wire message.
func Decode(data []byte) (Message, error) {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("bus: decode: %w", err)
	}
	switch w.Topic {
	case TopicGetIdentity:
		return GetIdentityRequest{}, nil
	case TopicUsingIdentity:
		return UsingIdentityReply{TitleTabID: w.TitleTabID}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTopic, w.Topic)
	}
}
