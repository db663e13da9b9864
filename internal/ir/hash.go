package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
)

// Domain prefixes for content-addressed identity.
// The version suffix allows a future algorithm migration.
const (
	DomainDispatch = "ruleware/dispatch/v1"
	DomainState    = "ruleware/state/v1"
	DomainProgram  = "ruleware/program/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DispatchID computes the content-addressed ID of one journaled dispatch.
// The same action dispatched twice in a token gets distinct IDs through seq.
func DispatchID(token string, action Action, seq int64) (string, error) {
	obj := IRObject{
		"token":   IRString(token),
		"type":    IRString(action.Type),
		"payload": StripNulls(action.payloadOrEmpty()),
		"seq":     IRInt(seq),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("DispatchID: %w", err)
	}
	return hashWithDomain(DomainDispatch, canonical), nil
}

// StateHash fingerprints a state snapshot. Null leaves are dropped first
// because canonical JSON forbids them.
func StateHash(state IRObject) (string, error) {
	canonical, err := MarshalCanonical(StripNulls(state))
	if err != nil {
		return "", fmt.Errorf("StateHash: %w", err)
	}
	return hashWithDomain(DomainState, canonical), nil
}

// ProgramHash fingerprints a compiled program so journals can tell which
// rule set produced them.
func ProgramHash(p *Program) (string, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: %w", err)
	}
	v, err := UnmarshalIRValue(raw)
	if err != nil {
		return "", fmt.Errorf("ProgramHash: %w", err)
	}
	canonical, err := MarshalCanonical(StripNulls(v))
	if err != nil {
		return "", fmt.Errorf("ProgramHash: %w", err)
	}
	return hashWithDomain(DomainProgram, canonical), nil
}

// MustDispatchID is like DispatchID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustDispatchID(token string, action Action, seq int64) string {
	id, err := DispatchID(token, action, seq)
	if err != nil {
		panic(err)
	}
	return id
}

// StripNulls returns v with null object members removed, recursively.
// Array elements keep their positions; CheckNullElements rejects values
// whose arrays hold null before they reach a hash or the journal.
func StripNulls(v IRValue) IRValue {
	switch val := v.(type) {
	case IRObject:
		out := make(IRObject, len(val))
		for k, elem := range val {
			if _, isNull := elem.(IRNull); isNull || elem == nil {
				continue
			}
			out[k] = StripNulls(elem)
		}
		return out
	case IRArray:
		out := make(IRArray, len(val))
		for i, elem := range val {
			out[i] = StripNulls(elem)
		}
		return out
	default:
		return v
	}
}

// CheckNullElements reports the first null array element in v by path.
// A null object member means "absent"; a null element would have no
// canonical form that keeps later indexes in place.
func CheckNullElements(v IRValue) error {
	return checkNullElements(v, "")
}

func checkNullElements(v IRValue, path string) error {
	switch val := v.(type) {
	case IRObject:
		for _, k := range val.SortedKeys() {
			if err := checkNullElements(val[k], joinPath(path, k)); err != nil {
				return err
			}
		}
	case IRArray:
		for i, elem := range val {
			at := joinPath(path, strconv.Itoa(i))
			if _, isNull := elem.(IRNull); isNull || elem == nil {
				return fmt.Errorf("null array element at %s", at)
			}
			if err := checkNullElements(elem, at); err != nil {
				return err
			}
		}
	}
	return nil
}

func joinPath(prefix, seg string) string {
	if prefix == "" {
		return seg
	}
	return prefix + "." + seg
}
