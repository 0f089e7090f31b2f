package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type EntryType string

const (
	EntryPart    EntryType = "Part"
	EntrySection EntryType = "Section"
	EntryClosing EntryType = "Closing"
)

// PromptsPerSection is the cardinality the generation instructions ask for.
const PromptsPerSection = 5

type Prompt struct {
	Text string `bson:"text" json:"text"`
}

type Section struct {
	EntryType EntryType `bson:"entry_type" json:"entryType"`
	Title     string    `bson:"title" json:"title"`
	Content   string    `bson:"content" json:"content"`
	Prompts   []Prompt  `bson:"prompts" json:"prompts"`
}

// Journal is a generated guided journal shared with exactly one client.
type Journal struct {
	ID              primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	CreatedAt       time.Time          `bson:"created_at" json:"createdAt"`
	UpdatedAt       time.Time          `bson:"updated_at" json:"updatedAt"`
	Topic           string             `bson:"topic" json:"topic"`
	Title           string             `bson:"title" json:"title"`
	Description     string             `bson:"description" json:"description"`
	OwnerID         string             `bson:"owner_id" json:"ownerId"`
	ClientID        string             `bson:"client_id" json:"clientId"`
	BookingLink     string             `bson:"booking_link" json:"bookingLink"`
	TableOfContents []Section          `bson:"table_of_contents" json:"tableOfContents"`
	Responses       [][]string         `bson:"responses" json:"responses"`
	IdempotencyKey  string             `bson:"idempotency_key,omitempty" json:"-"`
}
