package syncq

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Purchase is a remote buy that could not reach the API and waits for replay.
type Purchase struct {
	BaseURL  string    `json:"base_url"`
	GameID   uuid.UUID `json:"game_id"`
	Upgrade  string    `json:"upgrade"`
	QueuedAt time.Time `json:"queued_at"`
}

type Queue struct {
	path string
}

func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".clicker", "queue.json"), nil
}

func Open(path string) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, err
	}
	return &Queue{path: path}, nil
}

func (q *Queue) Load() ([]Purchase, error) {
	raw, err := os.ReadFile(q.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Purchase{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Purchase{}, nil
	}
	var out []Purchase
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (q *Queue) Save(items []Purchase) error {
	if len(items) == 0 {
		if err := os.Remove(q.path); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil
	}
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(q.path, raw, 0o600)
}

func (q *Queue) Push(p Purchase) error {
	items, err := q.Load()
	if err != nil {
		return err
	}
	if p.QueuedAt.IsZero() {
		p.QueuedAt = time.Now().UTC()
	}
	items = append(items, p)
	return q.Save(items)
}

// Replay sends queued purchases in order. Purchases for which send fails stay
// queued unless drop reports the error as permanent.
func (q *Queue) Replay(send func(Purchase) error, drop func(error) bool) (replayed int, remaining []Purchase, err error) {
	items, err := q.Load()
	if err != nil {
		return 0, nil, err
	}
	remaining = make([]Purchase, 0, len(items))
	for _, p := range items {
		if sendErr := send(p); sendErr != nil {
			if drop != nil && drop(sendErr) {
				continue
			}
			remaining = append(remaining, p)
			continue
		}
		replayed++
	}
	if err := q.Save(remaining); err != nil {
		return replayed, remaining, err
	}
	return replayed, remaining, nil
}
