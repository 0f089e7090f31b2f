package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// KnowledgeDoc is an uploaded background document. FileURL is the storage locator.
type KnowledgeDoc struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name       string             `bson:"name" json:"name"`
	FileURL    string             `bson:"file_url" json:"fileUrl"`
	UploadedAt time.Time          `bson:"uploaded_at" json:"uploadedAt"`
}
