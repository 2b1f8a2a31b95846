package rsml

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
)

type xmlDocument struct {
	Unit   string     `xml:"metadata>unit"`
	Plants []xmlPlant `xml:"scene>plant"`
}

type xmlPlant struct {
	ID    string    `xml:"id,attr"`
	Label string    `xml:"label,attr"`
	Roots []xmlRoot `xml:"root"`
}

type xmlRoot struct {
	ID        string        `xml:"id,attr"`
	Points    []xmlPoint    `xml:"geometry>polyline>point"`
	Functions []xmlFunction `xml:"functions>function"`
	Roots     []xmlRoot     `xml:"root"`
}

type xmlPoint struct {
	X string `xml:"x,attr"`
	Y string `xml:"y,attr"`
	Z string `xml:"z,attr"`
}

type xmlFunction struct {
	Name    string      `xml:"name,attr"`
	Samples []xmlSample `xml:"sample"`
}

type xmlSample struct {
	Value string `xml:"value,attr"`
	Text  string `xml:",chardata"`
}

// unitScale converts RSML units to cm.
var unitScale = map[string]float64{
	"":           1,
	"cm":         1,
	"mm":         0.1,
	"m":          100,
	"centimeter": 1,
	"millimeter": 0.1,
	"meter":      100,
}

// Read parses an RSML document. Coordinates are converted to cm; nested
// roots become polylines whose ParentPoly points at the enclosing root.
func Read(r io.Reader) ([]Plant, error) {
	var doc xmlDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("parsing rsml: %w", err)
	}
	scale, ok := unitScale[strings.ToLower(strings.TrimSpace(doc.Unit))]
	if !ok {
		return nil, fmt.Errorf("%w: unknown unit %q", ErrInvalidPlant, doc.Unit)
	}
	plants := make([]Plant, 0, len(doc.Plants))
	for i, xp := range doc.Plants {
		pl := Plant{Name: xp.Label}
		if pl.Name == "" {
			pl.Name = xp.ID
		}
		if pl.Name == "" {
			pl.Name = fmt.Sprintf("plant%d", i+1)
		}
		for _, root := range xp.Roots {
			if err := pl.addRoot(root, -1, scale); err != nil {
				return nil, err
			}
		}
		plants = append(plants, pl)
	}
	return plants, nil
}

// ReadFile reads an RSML file. A file with a single plant names it after
// the file, otherwise plants are named "<file>:<plant>".
func ReadFile(path string) ([]Plant, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rsml: %w", err)
	}
	plants, err := Read(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for i := range plants {
		if len(plants) == 1 {
			plants[i].Name = base
			continue
		}
		plants[i].Name = base + ":" + plants[i].Name
	}
	return plants, nil
}

func (pl *Plant) addRoot(root xmlRoot, parent int, scale float64) error {
	p := Polyline{ID: root.ID, ParentPoly: parent}
	for _, pt := range root.Points {
		v, err := parsePoint(pt)
		if err != nil {
			return fmt.Errorf("%w: root %s: %v", ErrInvalidPlant, root.ID, err)
		}
		p.Nodes = append(p.Nodes, r3.Scale(scale, v))
	}
	for _, f := range root.Functions {
		if f.Name != EmergenceTimeFunction {
			continue
		}
		for _, s := range f.Samples {
			raw := s.Value
			if raw == "" {
				raw = s.Text
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil {
				return fmt.Errorf("%w: root %s emergence time: %v", ErrInvalidPlant, root.ID, err)
			}
			p.EmergenceTimes = append(p.EmergenceTimes, v)
		}
	}
	idx := len(pl.Polylines)
	pl.Polylines = append(pl.Polylines, p)
	for _, child := range root.Roots {
		if err := pl.addRoot(child, idx, scale); err != nil {
			return err
		}
	}
	return nil
}

func parsePoint(pt xmlPoint) (r3.Vec, error) {
	var c [3]float64
	for i, s := range []string{pt.X, pt.Y, pt.Z} {
		if s == "" {
			if i == 2 {
				continue
			}
			return r3.Vec{}, fmt.Errorf("point without coordinate %d", i)
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return r3.Vec{}, err
		}
		c[i] = v
	}
	return r3.Vec{X: c[0], Y: c[1], Z: c[2]}, nil
}
