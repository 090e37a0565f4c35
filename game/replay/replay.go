// Package replay stores engine journals as zstd-compressed JSON lines.
//
// A journal file starts with one Header line followed by one
// engine.JournalEntry per line. Replaying the entries over a fresh engine
// built from the same level reproduces the recorded session.
package replay

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"

	"github.com/wricardo/puzzlemap/game/engine"
)

// Version is the journal file format version.
const Version = 1

// Ext is the file extension used for journal files.
const Ext = ".journal.jsonl.zst"

// ErrBadHeader is returned when a journal stream does not start with a header.
var ErrBadHeader = errors.New("replay: missing or invalid journal header")

// Header is the first line of every journal stream.
type Header struct {
	Version int    `json:"version"`
	Level   string `json:"level"`
	Entries int    `json:"entries"`
}

// Encode writes header and journal to w.
func Encode(w io.Writer, level string, journal []engine.JournalEntry) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 64*1024)

	if err := writeLine(bw, Header{Version: Version, Level: level, Entries: len(journal)}); err != nil {
		enc.Close()
		return err
	}
	for _, entry := range journal {
		if err := writeLine(bw, entry); err != nil {
			enc.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

func writeLine(w *bufio.Writer, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

// Decode reads a journal stream written by Encode.
func Decode(r io.Reader) (Header, []engine.JournalEntry, error) {
	var header Header

	dec, err := zstd.NewReader(r)
	if err != nil {
		return header, nil, err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return header, nil, err
		}
		return header, nil, ErrBadHeader
	}
	if err := json.Unmarshal(sc.Bytes(), &header); err != nil || header.Version == 0 {
		return header, nil, ErrBadHeader
	}
	if header.Version > Version {
		return header, nil, fmt.Errorf("replay: unsupported journal version %d", header.Version)
	}

	journal := make([]engine.JournalEntry, 0, header.Entries)
	line := 1
	for sc.Scan() {
		line++
		var entry engine.JournalEntry
		if err := json.Unmarshal(sc.Bytes(), &entry); err != nil {
			return header, nil, fmt.Errorf("replay: line %d: %w", line, err)
		}
		journal = append(journal, entry)
	}
	if err := sc.Err(); err != nil {
		return header, nil, err
	}
	if len(journal) != header.Entries {
		return header, nil, fmt.Errorf("replay: header announces %d entries, found %d", header.Entries, len(journal))
	}
	return header, journal, nil
}

// WriteFile replaces path with the encoded journal. The file is written to a
// temporary sibling first so readers never see a partial journal.
func WriteFile(path, level string, journal []engine.JournalEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()

	if err := Encode(f, level, journal); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// ReadFile decodes the journal stored at path.
func ReadFile(path string) (Header, []engine.JournalEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, nil, err
	}
	defer f.Close()
	return Decode(f)
}

// Apply builds a fresh engine for level and replays journal on it.
func Apply(level *engine.LevelConfig, journal []engine.JournalEntry, logger *zap.Logger) (*engine.GameEngine, error) {
	e, err := engine.NewEngine(level, logger)
	if err != nil {
		return nil, err
	}
	if err := e.Replay(journal); err != nil {
		return nil, err
	}
	return e, nil
}
