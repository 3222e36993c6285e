package fragment

import (
	"encoding/json"
	"fmt"
)

// eachMember streams a JSON object from dec, calling fn for every member in
// document order. A failing member is reported through fn's caller and does
// not stop the stream.
func eachMember(dec *json.Decoder, fn func(key string, raw json.RawMessage)) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: read object start: %v", ErrMalformed, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("%w: expected object, got %v", ErrMalformed, tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("%w: read key: %v", ErrMalformed, err)
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("%w: expected key, got %v", ErrMalformed, tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: value for %q: %v", ErrMalformed, key, err)
		}
		fn(key, raw)
	}
	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("%w: read object end: %v", ErrMalformed, err)
	}
	return nil
}
