package model

import "slices"

// Conversation is an append-only sequence of turns.
type Conversation struct {
	messages []Message
}

func NewConversation(messages ...Message) *Conversation {
	c := &Conversation{}
	c.Append(messages...)
	return c
}

func (c *Conversation) Append(messages ...Message) {
	c.messages = append(c.messages, messages...)
}

// Messages returns a copy, so later appends never change what a caller
// (or a provider holding on to the slice) already saw.
func (c *Conversation) Messages() []Message {
	return slices.Clone(c.messages)
}

func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent turn, or false for an empty conversation.
func (c *Conversation) Last() (Message, bool) {
	if len(c.messages) == 0 {
		return Message{}, false
	}
	return c.messages[len(c.messages)-1], true
}
