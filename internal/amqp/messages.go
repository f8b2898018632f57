package amqp

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ImportJobMessage tells the worker to execute one import run. It carries
// only the run id; the worker fetches the payload from the database so a
// replayed message always sees the current run state.
type ImportJobMessage struct {
	RunID     uuid.UUID `json:"run_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewImportJobMessage(runID uuid.UUID) *ImportJobMessage {
	return &ImportJobMessage{
		RunID:     runID,
		Timestamp: time.Now(),
	}
}

func (m *ImportJobMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ImportJobMessageFromJSON(data []byte) (*ImportJobMessage, error) {
	var msg ImportJobMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
