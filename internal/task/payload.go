package task

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/recall-api/internal/domain"
)

// Payload is the task input captured at submission time and stored as
// opaque JSON on the task record. Which fields are meaningful depends on
// the task type: Text for text submissions, URL for URL submissions,
// FileName/FileData for uploads, SetID for exports.
type Payload struct {
	Text     string                   `json:"text,omitempty"`
	URL      string                   `json:"url,omitempty"`
	FileName string                   `json:"file_name,omitempty"`
	FileData []byte                   `json:"file_data,omitempty"`
	SetID    uuid.UUID                `json:"set_id,omitempty"`
	Options  domain.GenerationOptions `json:"options"`
}

// Encode serializes the payload for storage on a task record.
func (p Payload) Encode() (json.RawMessage, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to encode task payload: %w", err)
	}
	return data, nil
}

// DecodePayload deserializes a task record's stored payload.
func DecodePayload(raw json.RawMessage) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("failed to decode task payload: %w", err)
	}
	return p, nil
}
