package chat

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cmuxiao/deepchat/internal/bridge"
	"github.com/cmuxiao/deepchat/internal/panel"
)

// WireEvent is the JSON envelope sent server->client.
type WireEvent = panel.Message

// ClientEvent is the JSON envelope sent client->server.
type ClientEvent = panel.Message

// ToWireEvent converts a relay update into the message sent to the panel.
func ToWireEvent(u bridge.Update) WireEvent {
	switch u.Kind {
	case bridge.KindDone:
		return panel.Done(u.ID, u.Text, u.Cancelled)
	case bridge.KindError:
		return panel.Failed(u.ID, u.Text)
	default:
		return panel.Response(u.ID, u.Text)
	}
}

// errorEvent builds the error reply for a request the bridge refused.
func errorEvent(id string, err error) WireEvent {
	return panel.Failed(id, bridge.ErrorPrefix+err.Error())
}

// DecodeClientEvent parses and validates one client frame.
func DecodeClientEvent(data []byte) (ClientEvent, error) {
	var ev ClientEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ClientEvent{}, fmt.Errorf("invalid client frame: %w", err)
	}
	switch ev.Command {
	case panel.CommandChat:
		ev.Text = strings.TrimSpace(ev.Text)
	case panel.CommandCancel:
	case "":
		return ClientEvent{}, fmt.Errorf("client frame has no command")
	default:
		return ClientEvent{}, fmt.Errorf("unknown command %q", ev.Command)
	}
	return ev, nil
}
