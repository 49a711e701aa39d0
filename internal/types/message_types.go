package types

import "chatroom/internal/models"

// MessageRequest is the body of POST /messages and PUT /messages/{id}.
// The sender comes from the User header, never from the body.
type MessageRequest struct {
	To   string             `json:"to"`
	Text string             `json:"text"`
	Type models.MessageKind `json:"type"`
}
