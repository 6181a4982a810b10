package events

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

type Envelope struct {
	Type    string          `json:"type"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func NewEnvelope(typ string, payload any) (Envelope, error) {
	if typ == "" {
		return Envelope{}, errors.New("empty envelope type")
	}
	env := Envelope{Type: typ, At: time.Now()}
	if payload == nil {
		return env, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, errors.Wrap(err, "marshal envelope payload")
	}
	env.Payload = b
	return env, nil
}

type ProcessStarted struct {
	RunID string   `json:"run_id"`
	Label string   `json:"label"`
	PID   int      `json:"pid"`
	Argv  []string `json:"argv"`
}

type ProcessExited struct {
	RunID    string `json:"run_id"`
	Label    string `json:"label"`
	PID      int    `json:"pid"`
	ExitCode *int   `json:"exit_code,omitempty"`
	Signal   string `json:"signal,omitempty"`
}

type RunStarted struct {
	RunID     string            `json:"run_id"`
	Arguments map[string]string `json:"arguments"`
	Processes int               `json:"processes"`
}

type RunFinished struct {
	RunID  string `json:"run_id"`
	Exited int    `json:"exited"`
	Failed int    `json:"failed"`
	Error  string `json:"error,omitempty"`
}
