package service

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/topology"
)

// NetworkCatalog holds the loaded road networks by name. Graphs are read-only
// once registered and may be shared by any number of sessions.
type NetworkCatalog struct {
	mu       sync.RWMutex
	networks map[string]*topology.Graph
}

func NewNetworkCatalog() *NetworkCatalog {
	return &NetworkCatalog{networks: make(map[string]*topology.Graph)}
}

// Register adds or replaces a network.
func (c *NetworkCatalog) Register(name string, g *topology.Graph) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.networks[name] = g
}

// Get returns a network by name.
func (c *NetworkCatalog) Get(name string) (*topology.Graph, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	g, ok := c.networks[name]
	return g, ok
}

// Names returns the registered network names, sorted.
func (c *NetworkCatalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.networks))
	for n := range c.networks {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LoadDir registers the network files in dir: SUMO nets (*.net.xml) and
// YAML scenarios (*.yaml, *.yml). Other files, such as detector or route
// XML kept next to a net, are skipped. The name drops the suffix, so
// "grid.net.xml" becomes "grid". Two files mapping to one name is an error.
func (c *NetworkCatalog) LoadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read network dir: %w", err)
	}

	sources := make(map[string]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name, ok := networkName(e.Name())
		if !ok {
			continue
		}
		if prev, dup := sources[name]; dup {
			return fmt.Errorf("network %q defined by both %s and %s", name, prev, e.Name())
		}
		sources[name] = e.Name()

		g, err := topology.LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		c.Register(name, g)
	}
	return nil
}

func networkName(file string) (string, bool) {
	lower := strings.ToLower(file)
	for _, suffix := range []string{".net.xml", ".yaml", ".yml"} {
		if strings.HasSuffix(lower, suffix) && len(file) > len(suffix) {
			return file[:len(file)-len(suffix)], true
		}
	}
	return "", false
}
