package pipeline

import (
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
)

// ManifestEntry records one stage execution in the run manifest.
type ManifestEntry struct {
	RunID    string    `json:"run_id"`
	Stage    string    `json:"stage"`
	Inputs   []string  `json:"inputs"`
	Outputs  []string  `json:"outputs"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// newRunID returns a fresh identifier shared by all stage entries of
// one pipeline invocation.
func newRunID() string {
	return uuid.New().String()
}

// appendManifest appends one entry to the manifest file, one JSON
// object per line.
func appendManifest(path string, e ManifestEntry) error {

	fid, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer fid.Close()

	enc := json.NewEncoder(fid)
	return enc.Encode(e)
}

// ReadManifest reads every entry of a manifest file.
func ReadManifest(path string) ([]ManifestEntry, error) {

	fid, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fid.Close()

	var entries []ManifestEntry
	dec := json.NewDecoder(fid)
	for dec.More() {
		var e ManifestEntry
		if err := dec.Decode(&e); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, nil
}
