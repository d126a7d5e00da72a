package hydrate

import "fmt"

// Kind distinguishes the ways hydrating a target's block dictionary into
// a Program can fail (spec.md §4.2 / §7).
type Kind int

const (
	// ErrUnknownOpcode means a block's opcode has no entry in the
	// statement or reporter lowering tables.
	ErrUnknownOpcode Kind = iota
	// ErrMissingInput means a block is missing an input slot its opcode
	// requires.
	ErrMissingInput
	// ErrMissingField means a block is missing a field its opcode
	// requires, or the field's array is shorter than expected.
	ErrMissingField
	// ErrBadReference means a block, input, or mutation argument refers
	// to a block id that is not present in the target's block
	// dictionary.
	ErrBadReference
)

func (k Kind) String() string {
	switch k {
	case ErrUnknownOpcode:
		return "unknown-opcode"
	case ErrMissingInput:
		return "missing-input"
	case ErrMissingField:
		return "missing-field"
	case ErrBadReference:
		return "bad-reference"
	default:
		return "unknown"
	}
}

// HydrateError is returned by Hydrate. BlockID identifies the offending
// block so callers can point a diagnostic at the source project.
type HydrateError struct {
	Kind    Kind
	BlockID string
	Detail  string
}

func (e *HydrateError) Error() string {
	return fmt.Sprintf("hydrate: %s: block %q: %s", e.Kind, e.BlockID, e.Detail)
}

func unknownOpcode(blockID, opcode string) *HydrateError {
	return &HydrateError{Kind: ErrUnknownOpcode, BlockID: blockID, Detail: fmt.Sprintf("opcode %q not supported", opcode)}
}

func missingInput(blockID, slot string) *HydrateError {
	return &HydrateError{Kind: ErrMissingInput, BlockID: blockID, Detail: fmt.Sprintf("missing input %q", slot)}
}

func missingField(blockID, field string) *HydrateError {
	return &HydrateError{Kind: ErrMissingField, BlockID: blockID, Detail: fmt.Sprintf("missing field %q", field)}
}

func badReference(blockID, ref string) *HydrateError {
	return &HydrateError{Kind: ErrBadReference, BlockID: blockID, Detail: fmt.Sprintf("dangling reference to block %q", ref)}
}
