// Package hashcache decides whether a cached data file can be trusted
// without re-reading it.
//
// Each data file may be paired with a hidden sidecar file holding a small
// record of the file's content digest, the file's modification time when
// the digest was computed, and an integrity tag over those two fields. The
// tag detects tampered or corrupted sidecars; the modification time detects
// out-of-band edits to the data file. A sidecar that is missing or fails
// either check is never an error: the validator falls back to re-hashing
// the live file content and writes a fresh sidecar.
package hashcache

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
)

// ErrNotFound is returned when the data file to hash does not exist.
var ErrNotFound = errors.New("hashcache: file not found")

const (
	sidecarSuffix = ".sha256"

	// hashChunkSize is the buffer size for re-hashing file content.
	hashChunkSize = 40960
)

// Record is the persisted sidecar content.
type Record struct {
	// Digest is the content digest of the data file.
	Digest digest.Digest `json:"digest"`

	// ModTime is the data file's modification time, in nanoseconds since
	// the Unix epoch, captured when Digest was computed.
	ModTime int64 `json:"mtime"`

	// Tag is a digest over the canonical serialization of Digest and
	// ModTime. A record whose tag does not match is invalid.
	Tag digest.Digest `json:"tag"`
}

// SidecarPath returns the sidecar path for a data file: a dot-prefixed
// sibling with a fixed suffix.
func SidecarPath(dataPath string) string {
	dir, name := filepath.Split(dataPath)
	return filepath.Join(dir, "."+name+sidecarSuffix)
}

// recordTag computes the integrity tag over a digest and modification time.
// The serialization is canonical: fixed field order, no whitespace.
func recordTag(dgst digest.Digest, modTime int64) digest.Digest {
	return digest.SHA256.FromString(fmt.Sprintf(`{"digest":%q,"mtime":%d}`, dgst, modTime))
}

// wellFormed reports whether the record parses as a self-consistent
// sidecar: both digests validate and the tag matches the recomputed tag.
func (r Record) wellFormed() bool {
	if r.Digest.Validate() != nil || r.Tag.Validate() != nil {
		return false
	}
	return r.Tag == recordTag(r.Digest, r.ModTime)
}

// load reads and verifies the sidecar for dataPath. It returns false for a
// missing, unparseable, or tampered sidecar.
func load(dataPath string) (Record, bool) {
	data, err := os.ReadFile(SidecarPath(dataPath))
	if err != nil {
		return Record{}, false
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false
	}
	if !rec.wellFormed() {
		return Record{}, false
	}
	return rec, true
}

// Store writes a sidecar recording dgst for the current state of the data
// file. The sidecar is written to a temp file and renamed so no reader can
// observe a partial record.
func Store(dataPath string, dgst digest.Digest) error {
	info, err := os.Stat(dataPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s: %w", dataPath, ErrNotFound)
		}
		return err
	}

	modTime := info.ModTime().UnixNano()
	rec := Record{
		Digest:  dgst,
		ModTime: modTime,
		Tag:     recordTag(dgst, modTime),
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}

	sidecar := SidecarPath(dataPath)
	tmp, err := os.CreateTemp(filepath.Dir(sidecar), ".sidecar-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, sidecar); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

// ComputeAndStore reads the data file in fixed-size chunks, computes its
// digest, and persists a fresh sidecar. It returns ErrNotFound when the
// file does not exist.
func ComputeAndStore(dataPath string) (digest.Digest, error) {
	f, err := os.Open(dataPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", dataPath, ErrNotFound)
		}
		return "", err
	}
	defer f.Close()

	digester := digest.SHA256.Digester()
	if _, err := io.CopyBuffer(digester.Hash(), f, make([]byte, hashChunkSize)); err != nil {
		return "", fmt.Errorf("hash %s: %w", dataPath, err)
	}
	dgst := digester.Digest()

	if err := Store(dataPath, dgst); err != nil {
		return "", err
	}
	return dgst, nil
}

// Resolve returns a trustworthy digest for the data file. A sidecar whose
// integrity tag verifies and whose recorded modification time equals the
// file's current one is trusted as-is; otherwise the digest is recomputed
// from the live content and a fresh sidecar is written.
func Resolve(dataPath string) (digest.Digest, error) {
	info, err := os.Stat(dataPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%s: %w", dataPath, ErrNotFound)
		}
		return "", err
	}
	if rec, ok := load(dataPath); ok && rec.ModTime == info.ModTime().UnixNano() {
		return rec.Digest, nil
	}
	return ComputeAndStore(dataPath)
}

// IsValid reports whether the data file's content matches expected. A
// missing data file is simply not cached. Sidecar problems never surface
// as errors; they only force a recompute.
func IsValid(dataPath string, expected digest.Digest) (bool, error) {
	dgst, err := Resolve(dataPath)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return dgst == expected, nil
}
