package topology

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LoadFile loads a network from disk. ".xml" files are read as SUMO networks,
// ".yaml"/".yml" files as YAML scenarios.
func LoadFile(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	defer f.Close()

	var g *Graph
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xml":
		g, err = LoadSUMO(f)
	case ".yaml", ".yml":
		g, err = LoadYAML(f)
	default:
		return nil, &LoadError{Source: path, Reason: fmt.Sprintf("unsupported network format %q", filepath.Ext(path))}
	}
	if err != nil {
		return nil, withSource(err, path)
	}
	return g, nil
}

func readAll(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, &LoadError{Reason: "read failed", Err: err}
	}
	return b, nil
}
