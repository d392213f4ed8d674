package security

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// Defaults for BodyLimits.
const (
	DefaultMaxBodyBytes = 1 << 20
	DefaultMaxJSONDepth = 32
)

var (
	ErrBodyTooLarge = errors.New("request body too large")
	ErrJSONTooDeep  = errors.New("JSON nesting too deep")
	ErrInvalidJSON  = errors.New("invalid JSON")
)

// BodyLimits bounds an untrusted JSON body. Zero fields use the defaults.
type BodyLimits struct {
	MaxBytes int
	MaxDepth int
}

func (l BodyLimits) withDefaults() BodyLimits {
	if l.MaxBytes <= 0 {
		l.MaxBytes = DefaultMaxBodyBytes
	}
	if l.MaxDepth <= 0 {
		l.MaxDepth = DefaultMaxJSONDepth
	}
	return l
}

// CheckJSONBody verifies data is well-formed JSON within l, without
// decoding values. An empty body passes.
func CheckJSONBody(data []byte, l BodyLimits) error {
	l = l.withDefaults()
	if len(data) > l.MaxBytes {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrBodyTooLarge, len(data), l.MaxBytes)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	depth, err := maxDepth(data, l.MaxDepth)
	if err != nil {
		return err
	}
	if depth > l.MaxDepth {
		return fmt.Errorf("%w: limit %d", ErrJSONTooDeep, l.MaxDepth)
	}
	return nil
}

// maxDepth walks the token stream and stops as soon as depth exceeds stop.
func maxDepth(data []byte, stop int) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	var depth, deepest int
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			if depth != 0 {
				return deepest, fmt.Errorf("%w: unexpected end of input", ErrInvalidJSON)
			}
			return deepest, nil
		}
		if err != nil {
			return deepest, fmt.Errorf("%w: %w", ErrInvalidJSON, err)
		}

		d, ok := tok.(json.Delim)
		if !ok {
			continue
		}
		switch d {
		case '{', '[':
			depth++
			deepest = max(deepest, depth)
			if deepest > stop {
				return deepest, nil
			}
		case '}', ']':
			depth--
		}
	}
}
