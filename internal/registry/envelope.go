package registry

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the wire version marker carried in every envelope.
const ProtocolVersion = "1.0"

// Every body on the wire is a two-element array: a version marker object
// followed by the payload object.
func wrapEnvelope(payload Document) ([]byte, error) {
	body := []any{
		map[string]string{"version": ProtocolVersion},
		payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("registry: envelope encode: %w", err)
	}
	return data, nil
}

func stripEnvelope(data []byte) (Document, error) {
	var elements []json.RawMessage
	if err := json.Unmarshal(data, &elements); err != nil {
		return nil, &SchemaError{Field: "envelope"}
	}
	if len(elements) < 1 {
		return nil, &SchemaError{Field: "envelope"}
	}

	var marker struct {
		Version string `json:"version"`
	}
	if err := json.Unmarshal(elements[0], &marker); err != nil || marker.Version == "" {
		return nil, &SchemaError{Field: "version"}
	}
	if len(elements) < 2 {
		return nil, nil
	}

	var payload Document
	if err := json.Unmarshal(elements[1], &payload); err != nil {
		return nil, &SchemaError{Field: "payload"}
	}
	return payload, nil
}
