package models

import "time"

// ChatSession is one saved conversation, keyed by the numeric ID of its
// first message so repeated saves of the same conversation update in place
// rather than duplicate.
//
// Invariant: Messages is non-empty and begins with a user-role message.
type ChatSession struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	Date         string    `json:"date"`
	Time         string    `json:"time"`
	MessageCount int       `json:"messageCount"`
	Messages     []Message `json:"messages"`
	CreatedAt    time.Time `json:"createdAt"`
}

// Light returns a copy of the session suitable for durable storage: every
// attachment has its payload stripped and preview handles dropped.
func (s ChatSession) Light() ChatSession {
	msgs := make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		if len(m.Attachments) > 0 {
			atts := make([]Attachment, len(m.Attachments))
			for j, a := range m.Attachments {
				atts[j] = a.Light()
			}
			m.Attachments = atts
		}
		msgs[i] = m
	}
	s.Messages = msgs
	return s
}
