// Package checkpoint saves and restores a module's state dict alongside
// training metadata, in a versioned binary format: a length-prefixed JSON
// header describing every entry's path/shape, followed by its float32
// data in that same order.
package checkpoint

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/google/uuid"
	"github.com/rz-123/TinyAI-sub001/nn"
	"github.com/rz-123/TinyAI-sub001/tensor"
)

// FormatVersion is bumped whenever the on-disk layout changes incompatibly.
const FormatVersion = 1

// Checkpoint bundles a module's state dict with the training context it
// was captured in.
type Checkpoint struct {
	StateDict map[string]*tensor.Tensor
	Epoch     int
	Loss      float32
	Timestamp int64
	Version   int
	RunID     uuid.UUID
}

// New captures m's current state dict into a Checkpoint tagged with the
// given epoch/loss/timestamp and a freshly generated RunID.
func New(m *nn.Module, epoch int, loss float32, timestamp int64) *Checkpoint {
	return &Checkpoint{
		StateDict: m.StateDict(),
		Epoch:     epoch,
		Loss:      loss,
		Timestamp: timestamp,
		Version:   FormatVersion,
		RunID:     uuid.New(),
	}
}

// Restore loads c's state dict into m. strict controls whether missing
// or extra entries are a hard error (see Module.LoadStateDict).
func Restore(m *nn.Module, c *Checkpoint, strict bool) error {
	return m.LoadStateDict(c.StateDict, strict)
}

type entryMeta struct {
	Path  string `json:"path"`
	Shape []int  `json:"shape"`
}

type header struct {
	Version   int         `json:"version"`
	Epoch     int         `json:"epoch"`
	Loss      float32     `json:"loss"`
	Timestamp int64       `json:"timestamp"`
	RunID     string      `json:"run_id"`
	Entries   []entryMeta `json:"entries"`
}

// Save writes c to path: [uint32 headerLen][header JSON][float32 data...],
// in the entry order recorded in the header. The file is written to a
// temporary path in the same directory first and renamed into place, so a
// reader never observes a partially written checkpoint.
func Save(c *Checkpoint, path string) error {
	paths := make([]string, 0, len(c.StateDict))
	for p := range c.StateDict {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := header{
		Version:   c.Version,
		Epoch:     c.Epoch,
		Loss:      c.Loss,
		Timestamp: c.Timestamp,
		RunID:     c.RunID.String(),
		Entries:   make([]entryMeta, len(paths)),
	}
	for i, p := range paths {
		h.Entries[i] = entryMeta{Path: p, Shape: []int(c.StateDict[p].Shape())}
	}

	headerBytes, err := json.Marshal(h)
	if err != nil {
		return err
	}
	if len(headerBytes) > (1 << 31) {
		return errors.New("checkpoint header too large")
	}

	dir := filepath.Dir(path)
	tmp := filepath.Join(dir, ".tmp_"+filepath.Base(path))
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := binary.Write(f, binary.LittleEndian, uint32(len(headerBytes))); err != nil {
		return err
	}
	if _, err := f.Write(headerBytes); err != nil {
		return err
	}
	for _, p := range paths {
		for _, v := range c.StateDict[p].Data() {
			if err := binary.Write(f, binary.LittleEndian, v); err != nil {
				return err
			}
		}
	}

	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Load reads a Checkpoint previously written by Save.
func Load(path string) (*Checkpoint, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var headerLen uint32
	if err := binary.Read(f, binary.LittleEndian, &headerLen); err != nil {
		return nil, err
	}
	headerBytes := make([]byte, headerLen)
	if _, err := io.ReadFull(f, headerBytes); err != nil {
		return nil, err
	}
	var h header
	if err := json.Unmarshal(headerBytes, &h); err != nil {
		return nil, err
	}

	runID, err := uuid.Parse(h.RunID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: invalid run_id: %w", err)
	}

	dict := make(map[string]*tensor.Tensor, len(h.Entries))
	for _, entry := range h.Entries {
		shape := tensor.NewShape(entry.Shape...)
		data := make([]float32, shape.Size())
		for i := range data {
			if err := binary.Read(f, binary.LittleEndian, &data[i]); err != nil {
				return nil, err
			}
		}
		tn, err := tensor.FromArray(data, shape)
		if err != nil {
			return nil, err
		}
		dict[entry.Path] = tn
	}

	return &Checkpoint{
		StateDict: dict,
		Epoch:     h.Epoch,
		Loss:      h.Loss,
		Timestamp: h.Timestamp,
		Version:   h.Version,
		RunID:     runID,
	}, nil
}
