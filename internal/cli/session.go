package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Remote remembers which server-side game the CLI plays by default.
type Remote struct {
	BaseURL string    `json:"base_url"`
	GameID  uuid.UUID `json:"game_id"`
}

func baseDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".clicker")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return dir, nil
}

func remotePath() (string, error) {
	dir, err := baseDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "remote.json"), nil
}

func SaveRemote(r Remote) error {
	path, err := remotePath()
	if err != nil {
		return err
	}
	body, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, body, 0o600)
}

func LoadRemote() (Remote, error) {
	path, err := remotePath()
	if err != nil {
		return Remote{}, err
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return Remote{}, err
	}
	var r Remote
	if err := json.Unmarshal(body, &r); err != nil {
		return Remote{}, err
	}
	if r.GameID == uuid.Nil {
		return Remote{}, fmt.Errorf("no remote game found, run `clk remote new`")
	}
	return r, nil
}

func ClearRemote() error {
	path, err := remotePath()
	if err != nil {
		return err
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	return os.Remove(path)
}
