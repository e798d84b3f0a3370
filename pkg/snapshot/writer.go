// Package snapshot persists generated frames outside the display loop.
//
// Every snapshot is a PNG plus a JSON metadata sidecar in the snapshots
// directory. An optional archive sink mirrors the metadata into MongoDB
// for deployments that keep a long-term record of what the appliance
// showed.
package snapshot

import (
	"encoding/json"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/mhartmeier/chartmorph/pkg/frame"
)

// Metadata describes one generated frame.
type Metadata struct {
	Seq         uint64        `json:"seq" bson:"seq"`
	Symbol      string        `json:"symbol" bson:"symbol"`
	Price       float64       `json:"price" bson:"price"`
	ChangePct   float64       `json:"change_pct" bson:"change_pct"`
	Prompt      string        `json:"prompt" bson:"prompt"`
	Negative    string        `json:"negative,omitempty" bson:"negative,omitempty"`
	Seed        int64         `json:"seed" bson:"seed"`
	GeneratedAt time.Time     `json:"generated_at" bson:"generated_at"`
	Elapsed     time.Duration `json:"elapsed_ns" bson:"elapsed_ns"`
	File        string        `json:"file,omitempty" bson:"file,omitempty"`
}

// Writer saves frames and metadata to a directory.
type Writer struct {
	dir    string
	logger *log.Logger
}

// NewWriter creates the snapshots directory if needed.
func NewWriter(dir string, logger *log.Logger) (*Writer, error) {
	if logger == nil {
		logger = log.New(nil)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Writer{dir: dir, logger: logger}, nil
}

// Dir returns the snapshots directory.
func (w *Writer) Dir() string { return w.dir }

// Save writes the frame as PNG plus a JSON sidecar and returns the PNG
// path. The metadata's File field is filled in before writing.
func (w *Writer) Save(f *frame.Frame, meta Metadata) (string, error) {
	stamp := meta.GeneratedAt
	if stamp.IsZero() {
		stamp = time.Now()
	}
	base := fmt.Sprintf("chartmorph_%06d_%s", meta.Seq, stamp.Format("20060102_150405"))
	pngPath := filepath.Join(w.dir, base+".png")
	metaPath := filepath.Join(w.dir, base+".json")

	pf, err := os.Create(pngPath)
	if err != nil {
		return "", err
	}
	if err := png.Encode(pf, f.Img); err != nil {
		pf.Close()
		return "", err
	}
	if err := pf.Close(); err != nil {
		return "", err
	}

	meta.File = filepath.Base(pngPath)
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(metaPath, data, 0o644); err != nil {
		return "", err
	}

	w.logger.Debug("snapshot saved", "seq", meta.Seq, "file", pngPath)
	return pngPath, nil
}
