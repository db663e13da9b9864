package ir

import "fmt"

// Action is a dispatched action: a type string plus an optional payload.
type Action struct {
	Type    string   `json:"type" yaml:"type"`
	Payload IRObject `json:"payload,omitempty" yaml:"payload,omitempty"`
}

// NewAction builds an action from a type and a Go payload map.
// Panics if the payload holds unsupported values; intended for literals.
func NewAction(actionType string, payload map[string]any) Action {
	obj, err := ObjectFromAny(payload)
	if err != nil {
		panic(fmt.Sprintf("ir.NewAction(%q): %v", actionType, err))
	}
	if err := CheckNullElements(obj); err != nil {
		panic(fmt.Sprintf("ir.NewAction(%q): %v", actionType, err))
	}
	return Action{Type: actionType, Payload: obj}
}

// ToIR renders the action as an IRObject {type, payload}, the shape
// conditions and templates address under "action".
func (a Action) ToIR() IRObject {
	return IRObject{
		"type":    IRString(a.Type),
		"payload": a.payloadOrEmpty(),
	}
}

func (a Action) payloadOrEmpty() IRObject {
	if a.Payload == nil {
		return IRObject{}
	}
	return a.Payload
}

// ActionFromIR converts an IRObject {type, payload} back into an Action.
func ActionFromIR(obj IRObject) (Action, error) {
	typ, ok := obj["type"].(IRString)
	if !ok || typ == "" {
		return Action{}, fmt.Errorf("action requires a non-empty string type")
	}
	action := Action{Type: string(typ)}
	switch payload := obj["payload"].(type) {
	case nil, IRNull:
	case IRObject:
		action.Payload = payload
	default:
		return Action{}, fmt.Errorf("action %q: payload must be an object, got %T", typ, payload)
	}
	return action, nil
}

// FactsObject builds the {state, action} object that declarative conditions
// and reaction templates read from.
func FactsObject(state IRObject, action Action) IRObject {
	if state == nil {
		state = IRObject{}
	}
	return IRObject{
		"state":  state,
		"action": action.ToIR(),
	}
}
