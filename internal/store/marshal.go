package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/ruleware/internal/ir"
)

// marshalPayload converts an action payload to canonical JSON TEXT.
// Null leaves are dropped, matching ir.DispatchID.
func marshalPayload(payload ir.IRObject) (string, error) {
	if payload == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(ir.StripNulls(payload))
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return string(data), nil
}

// unmarshalPayload parses canonical JSON TEXT back into an IRObject.
// IRObject.UnmarshalJSON keeps integers above 2^53 exact.
func unmarshalPayload(data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return obj, nil
}
