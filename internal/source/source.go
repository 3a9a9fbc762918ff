// Package source reads and writes scenario and result documents by location.
// A location is a local path or any URL scheme supported by viant/afs.
package source

import (
	"bytes"
	"context"
	"fmt"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"gopkg.in/yaml.v3"
)

var fs = afs.New()

// Download returns the content stored at location.
func Download(ctx context.Context, location string) ([]byte, error) {
	ok, err := fs.Exists(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("checking %s: %w", location, err)
	}
	if !ok {
		return nil, fmt.Errorf("%s: not found", location)
	}
	data, err := fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", location, err)
	}
	return data, nil
}

// Upload stores data at location, creating parent directories as needed.
func Upload(ctx context.Context, location string, data []byte) error {
	if err := fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("writing %s: %w", location, err)
	}
	return nil
}

// DecodeYAML parses data into out with strict field checking: unknown keys are errors.
func DecodeYAML(data []byte, out any) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(out); err != nil {
		return err
	}
	return nil
}

// LoadYAML downloads location and strictly decodes it into out.
func LoadYAML(ctx context.Context, location string, out any) error {
	data, err := Download(ctx, location)
	if err != nil {
		return err
	}
	if err := DecodeYAML(data, out); err != nil {
		return fmt.Errorf("parsing %s: %w", location, err)
	}
	return nil
}
