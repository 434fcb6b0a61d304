package topology

import (
	"encoding/xml"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

type netXML struct {
	XMLName   xml.Name      `xml:"net"`
	Edges     []edgeXML     `xml:"edge"`
	Junctions []junctionXML `xml:"junction"`
}

type edgeXML struct {
	ID       string    `xml:"id,attr"`
	From     string    `xml:"from,attr"`
	To       string    `xml:"to,attr"`
	Function string    `xml:"function,attr"`
	Lanes    []laneXML `xml:"lane"`
}

type laneXML struct {
	ID     string  `xml:"id,attr"`
	Index  int     `xml:"index,attr"`
	Length float64 `xml:"length,attr"`
	Shape  string  `xml:"shape,attr"`
}

type junctionXML struct {
	ID   string  `xml:"id,attr"`
	Type string  `xml:"type,attr"`
	X    float64 `xml:"x,attr"`
	Y    float64 `xml:"y,attr"`
}

// LoadSUMO reads a SUMO network file. Internal edges and junctions are
// skipped; an edge's length is the length of its lane 0.
func LoadSUMO(r io.Reader) (*Graph, error) {
	b, err := readAll(r)
	if err != nil {
		return nil, err
	}

	var net netXML
	if err := xml.Unmarshal(b, &net); err != nil {
		return nil, &LoadError{Reason: "malformed network XML", Err: err}
	}

	g := New()
	for _, j := range net.Junctions {
		if j.Type == "internal" {
			continue
		}
		if err := g.AddNode(j.ID, orb.Point{j.X, j.Y}); err != nil {
			return nil, err
		}
	}

	for _, ex := range net.Edges {
		if ex.Function != "" {
			continue
		}
		if len(ex.Lanes) == 0 {
			return nil, &LoadError{Element: "edge " + ex.ID, Reason: "no lanes"}
		}

		lanes := make([]Lane, 0, len(ex.Lanes))
		for _, lx := range ex.Lanes {
			shape, err := parseShape(lx.Shape)
			if err != nil {
				return nil, &LoadError{Element: "lane " + lx.ID, Reason: "malformed shape", Err: err}
			}
			lanes = append(lanes, Lane{ID: lx.ID, Index: lx.Index, Length: lx.Length, Shape: shape})
		}
		sort.SliceStable(lanes, func(i, j int) bool { return lanes[i].Index < lanes[j].Index })

		if err := g.AddEdge(Edge{
			ID:     ex.ID,
			From:   ex.From,
			To:     ex.To,
			Length: lanes[0].Length,
			Lanes:  lanes,
		}); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// parseShape parses "x,y x,y ..." (a third z component is ignored).
func parseShape(s string) (orb.LineString, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return nil, nil
	}
	ls := make(orb.LineString, 0, len(fields))
	for _, f := range fields {
		parts := strings.Split(f, ",")
		if len(parts) < 2 {
			return nil, fmt.Errorf("bad point %q", f)
		}
		x, err := strconv.ParseFloat(parts[0], 64)
		if err != nil {
			return nil, fmt.Errorf("bad x in %q: %w", f, err)
		}
		y, err := strconv.ParseFloat(parts[1], 64)
		if err != nil {
			return nil, fmt.Errorf("bad y in %q: %w", f, err)
		}
		ls = append(ls, orb.Point{x, y})
	}
	return ls, nil
}
