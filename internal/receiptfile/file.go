// Package receiptfile reads and writes purchase records on disk and keeps a
// licensing.ReceiptStore in sync with a receipt file.
package receiptfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rcourtman/tunnelpass/pkg/licensing"
	"gopkg.in/yaml.v3"
)

// ErrEmptyPath is returned when no receipt path is configured.
var ErrEmptyPath = errors.New("receipt path is empty")

// Format is the on-disk encoding of a receipt file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the encoding from the file extension. Anything that is not
// .yaml or .yml is treated as JSON.
func FormatFor(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Load reads and decodes the receipt at path.
func Load(path string) (*licensing.Receipt, error) {
	if strings.TrimSpace(path) == "" {
		return nil, ErrEmptyPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read receipt %s: %w", path, err)
	}
	receipt, err := Decode(data, FormatFor(path))
	if err != nil {
		return nil, fmt.Errorf("decode receipt %s: %w", path, err)
	}
	return receipt, nil
}

// Decode parses a receipt document. Unknown fields are rejected so a typo in
// a hand-written receipt does not silently drop a purchase.
func Decode(data []byte, format Format) (*licensing.Receipt, error) {
	var receipt licensing.Receipt
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&receipt); err != nil {
			return nil, err
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&receipt); err != nil {
			return nil, err
		}
	}
	return &receipt, nil
}

// Encode serializes a receipt in the given format.
func Encode(receipt *licensing.Receipt, format Format) ([]byte, error) {
	if receipt == nil {
		return nil, errors.New("nil receipt")
	}
	if format == FormatYAML {
		return yaml.Marshal(receipt)
	}
	return json.MarshalIndent(receipt, "", "  ")
}

// Save writes the receipt to path atomically, using the format implied by the
// extension.
func Save(path string, receipt *licensing.Receipt) error {
	if strings.TrimSpace(path) == "" {
		return ErrEmptyPath
	}
	data, err := Encode(receipt, FormatFor(path))
	if err != nil {
		return fmt.Errorf("encode receipt: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp receipt in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write temp receipt: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp receipt: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("replace receipt %s: %w", path, err)
	}
	return nil
}
