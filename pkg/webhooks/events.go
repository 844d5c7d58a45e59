package webhooks

import (
	"encoding/json"
	"fmt"

	"github.com/platinummonkey/usersync/pkg/users"
)

// EventType is the provider's event discriminator
type EventType string

const (
	EventUserCreated EventType = "user.created"
	EventUserUpdated EventType = "user.updated"
	EventUserDeleted EventType = "user.deleted"
)

// Envelope is a verified but not yet interpreted event
type Envelope struct {
	Type   EventType       `json:"type"`
	Object string          `json:"object,omitempty"`
	Data   json.RawMessage `json:"data"`
}

// Event is one of UserUpserted, UserDeleted or Unrecognized
type Event interface {
	EventType() EventType
	isEvent()
}

// UserUpserted carries user.created and user.updated
type UserUpserted struct {
	Type EventType
	User users.ExternalUser
}

// UserDeleted carries user.deleted. ID is nil when the payload omits it.
type UserDeleted struct {
	ID *string
}

// Unrecognized is any event type this service does not act on
type Unrecognized struct {
	Type EventType
}

func (e UserUpserted) EventType() EventType { return e.Type }
func (e UserDeleted) EventType() EventType  { return EventUserDeleted }
func (e Unrecognized) EventType() EventType { return e.Type }

func (UserUpserted) isEvent() {}
func (UserDeleted) isEvent()  {}
func (Unrecognized) isEvent() {}

// deletedObject is the provider's payload for deletions
type deletedObject struct {
	ID      *string `json:"id"`
	Deleted bool    `json:"deleted"`
	Object  string  `json:"object"`
}

// ParseEvent decodes the envelope data into the variant for its type
func ParseEvent(env *Envelope) (Event, error) {
	switch env.Type {
	case EventUserCreated, EventUserUpdated:
		var ext users.ExternalUser
		if err := decodeData(env.Data, &ext); err != nil {
			return nil, err
		}
		return UserUpserted{Type: env.Type, User: ext}, nil

	case EventUserDeleted:
		var obj deletedObject
		if err := decodeData(env.Data, &obj); err != nil {
			return nil, err
		}
		return UserDeleted{ID: obj.ID}, nil

	default:
		return Unrecognized{Type: env.Type}, nil
	}
}

func decodeData(data json.RawMessage, dest interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: missing data", ErrMalformedPayload)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return nil
}
