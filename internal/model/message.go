package model

import (
	"time"
)

// Message is append-only. A nil SenderID means the external client wrote it.
type Message struct {
	ID         string    `db:"id" json:"id"`
	ProjectID  string    `db:"project_id" json:"projectId"`
	SenderID   *string   `db:"sender_id" json:"senderId"`
	Content    string    `db:"content" json:"content"`
	IsInternal bool      `db:"is_internal" json:"isInternal"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

type CreateMessageParams struct {
	ProjectID  string
	SenderID   *string
	Content    string
	IsInternal bool
}

// RecentMessage is a message joined with its project name for the dashboard inbox.
type RecentMessage struct {
	Message
	ProjectName string `db:"project_name" json:"projectName"`
}

func (m *Message) FromClient() bool {
	return m.SenderID == nil
}
