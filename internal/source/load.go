package source

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/hunter/internal/model"
)

type sourcesFile struct {
	Sources []model.Source `yaml:"sources"`
}

// LoadSources reads and validates the sources file at path.
func LoadSources(path string) ([]model.Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read %s", path)
	}
	srcs, err := ParseSources(data)
	if err != nil {
		return nil, eris.Wrapf(err, "source: load %s", path)
	}
	return srcs, nil
}

// ParseSources decodes a sources document. Unknown keys are rejected, names
// must be unique, and kind may be left out when exactly one payload is set.
func ParseSources(data []byte) ([]model.Source, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f sourcesFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, eris.Wrap(err, "source: decode yaml")
	}

	seen := make(map[string]bool, len(f.Sources))
	for i := range f.Sources {
		src := &f.Sources[i]
		if src.Kind == "" {
			src.Kind = inferKind(*src)
		}
		if err := src.Validate(); err != nil {
			return nil, err
		}
		if seen[src.Name] {
			return nil, eris.Errorf("source: duplicate name %q", src.Name)
		}
		seen[src.Name] = true
	}
	return f.Sources, nil
}

// Find returns the source called name.
func Find(srcs []model.Source, name string) (model.Source, bool) {
	for _, s := range srcs {
		if s.Name == name {
			return s, true
		}
	}
	return model.Source{}, false
}

func inferKind(s model.Source) model.SourceKind {
	switch {
	case s.RSS != nil && s.HTTP == nil && s.Browser == nil:
		return model.SourceRSS
	case s.HTTP != nil && s.RSS == nil && s.Browser == nil:
		return model.SourceHTTPScrape
	case s.Browser != nil && s.RSS == nil && s.HTTP == nil:
		return model.SourceBrowserScrape
	}
	return ""
}
