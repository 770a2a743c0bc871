package phh

import (
	"bytes"
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
)

// Encode writes one hand to w as a TOML document.
func Encode(w io.Writer, hand Hand) error {
	if err := toml.NewEncoder(w).Encode(hand); err != nil {
		return fmt.Errorf("encode hand %s: %w", hand.HandID, err)
	}
	return nil
}

// Marshal returns the TOML document for one hand.
func Marshal(hand Hand) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, hand); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Parse reads a hand back from its TOML document.
func Parse(data []byte) (Hand, error) {
	var hand Hand
	if err := toml.Unmarshal(data, &hand); err != nil {
		return Hand{}, fmt.Errorf("parse hand history: %w", err)
	}
	return hand, nil
}
