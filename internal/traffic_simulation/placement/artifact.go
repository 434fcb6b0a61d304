package placement

import (
	"encoding/xml"
	"fmt"
	"io"
	"strconv"

	"github.com/GoSim-25-26J-441/v2i-traffic/internal/traffic_simulation/domain"
)

const (
	detectorFreq   = "1"
	detectorOutput = "detector_output.xml"
)

type additionalXML struct {
	XMLName xml.Name           `xml:"additional"`
	Loops   []inductionLoopXML `xml:"inductionLoop"`
}

type inductionLoopXML struct {
	ID   string `xml:"id,attr"`
	Lane string `xml:"lane,attr"`
	Pos  string `xml:"pos,attr"`
	Freq string `xml:"freq,attr,omitempty"`
	File string `xml:"file,attr,omitempty"`
}

// WriteSensors encodes sensors as a SUMO additional file of induction loops.
// Offsets use the shortest decimal form that parses back to the same float.
func WriteSensors(w io.Writer, sensors []domain.Sensor) error {
	doc := additionalXML{Loops: make([]inductionLoopXML, 0, len(sensors))}
	for _, s := range sensors {
		doc.Loops = append(doc.Loops, inductionLoopXML{
			ID:   s.ID,
			Lane: s.Lane,
			Pos:  strconv.FormatFloat(s.Position, 'f', -1, 64),
			Freq: detectorFreq,
			File: detectorOutput,
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "    ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode sensors: %w", err)
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ReadSensors decodes an additional file written by WriteSensors.
func ReadSensors(r io.Reader) ([]domain.Sensor, error) {
	var doc additionalXML
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: malformed sensor file: %v", domain.ErrLoad, err)
	}

	sensors := make([]domain.Sensor, 0, len(doc.Loops))
	for _, l := range doc.Loops {
		pos, err := strconv.ParseFloat(l.Pos, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: sensor %s has bad pos %q", domain.ErrLoad, l.ID, l.Pos)
		}
		sensors = append(sensors, domain.Sensor{ID: l.ID, Lane: l.Lane, Position: pos})
	}
	return sensors, nil
}
