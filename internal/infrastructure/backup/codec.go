// Package backup archives store snapshots to local files and S3-compatible
// object storage, and restores them.
package backup

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/erp/ledgerstore/internal/infrastructure/persistence"
	"github.com/klauspost/compress/gzip"
)

// gzipMagic opens every gzip stream
var gzipMagic = []byte{0x1f, 0x8b}

// Encode writes snap as JSON, gzipped when compress is set
func Encode(w io.Writer, snap *persistence.Snapshot, compress bool) error {
	if !compress {
		return writeJSON(w, snap)
	}
	zw, err := gzip.NewWriterLevel(w, gzip.BestCompression)
	if err != nil {
		return fmt.Errorf("create gzip writer: %w", err)
	}
	if err := writeJSON(zw, snap); err != nil {
		_ = zw.Close()
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish gzip stream: %w", err)
	}
	return nil
}

// Marshal is Encode into memory
func Marshal(snap *persistence.Snapshot, compress bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, snap, compress); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a snapshot written by Encode. Compression is detected from
// the stream itself.
func Decode(r io.Reader) (*persistence.Snapshot, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(len(gzipMagic))
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("read archive header: %w", err)
	}

	var src io.Reader = br
	if bytes.Equal(head, gzipMagic) {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("open gzip stream: %w", err)
		}
		defer zr.Close()
		src = zr
	}

	var snap persistence.Snapshot
	if err := json.NewDecoder(src).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.SchemaVersion == 0 {
		return nil, fmt.Errorf("decode snapshot: missing schema version")
	}
	return &snap, nil
}

func writeJSON(w io.Writer, snap *persistence.Snapshot) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return nil
}
