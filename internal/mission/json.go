package mission

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// UnmarshalJSON accepts the legacy "RTL" spelling.
func (a *Action) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("action: %w", err)
	}
	if s == legacyRTL {
		s = string(ActionReturnToLaunch)
	}
	*a = Action(s)
	return nil
}

// UnmarshalYAML mirrors UnmarshalJSON for plans embedded in config files.
func (a *Action) UnmarshalYAML(n *yaml.Node) error {
	var s string
	if err := n.Decode(&s); err != nil {
		return fmt.Errorf("action: %w", err)
	}
	if s == legacyRTL {
		s = string(ActionReturnToLaunch)
	}
	*a = Action(s)
	return nil
}

// MarshalJSON always emits points as a list, empty for steps without any.
func (s Step) MarshalJSON() ([]byte, error) {
	type wire Step
	if s.Points == nil {
		s.Points = []string{}
	}
	return json.Marshal(wire(s))
}

// Encode writes the wire representation of p.
func Encode(w io.Writer, p *Plan) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}

// Marshal returns the wire representation of p.
func Marshal(p *Plan) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, p); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode parses and validates a plan.
func Decode(r io.Reader) (*Plan, error) {
	var p Plan
	dec := json.NewDecoder(r)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode plan: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Unmarshal parses and validates a plan from b.
func Unmarshal(b []byte) (*Plan, error) {
	return Decode(bytes.NewReader(b))
}

// LoadFile reads a plan from a JSON file.
func LoadFile(path string) (*Plan, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	p, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}
