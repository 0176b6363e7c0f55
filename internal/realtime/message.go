package realtime

import "encoding/json"

// TypeForceLogout tells a client its session was terminated.
const TypeForceLogout = "force_logout"

// DefaultForceLogoutMessage is shown when an administrator gives no reason.
const DefaultForceLogoutMessage = "Your session has been terminated by an administrator."

// Message is a notification frame sent over the websocket.
type Message struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
	UserID  uint64 `json:"user_id,omitempty"`
}

// ForceLogout builds a force logout message for userID.
func ForceLogout(userID uint64, message string) Message {
	if message == "" {
		message = DefaultForceLogoutMessage
	}
	return Message{Type: TypeForceLogout, Message: message, UserID: userID}
}

// ParseMessage decodes a frame.
func ParseMessage(data []byte) (Message, error) {
	var msg Message
	err := json.Unmarshal(data, &msg)
	return msg, err
}
