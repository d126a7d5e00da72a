package hydrate

import (
	"encoding/json"
	"strconv"

	"github.com/scratchc/scratchc/internal/archive"
	"github.com/scratchc/scratchc/internal/logging"
)

var log = logging.New("hydrate")

// input operand literal kinds (project.json's numeric "shadow kind" codes
// for the payload of a two-element [kind, value] literal record).
const (
	kindMathNum     = 4
	kindPositiveNum = 5
	kindWholeNum    = 6
	kindIntegerNum  = 7
	kindText        = 10
	kindVariable    = 12
)

// Hydrate walks target's block dictionary and produces its Program:
// declared variables, user-defined procedures, and top-level scripts
// (spec.md §4.2).
//
// Variable and script ordering falls out of Go's map iteration order over
// target.Variables and target.Blocks, which — like the hash maps of the
// original implementation this format comes from — is unspecified. Callers
// that need a deterministic ordering must sort themselves.
func Hydrate(target archive.Target) (*Program, error) {
	prog := &Program{}

	for id := range target.Variables {
		prog.Variables = append(prog.Variables, id)
	}

	for blockID, block := range target.Blocks {
		switch {
		case block.Opcode == "procedures_definition":
			proc, err := hydrateProcedure(blockID, block, target.Blocks)
			if err != nil {
				return nil, err
			}
			prog.Procedures = append(prog.Procedures, proc)

		case block.TopLevel:
			script, err := buildBlock(blockID, target.Blocks)
			if err != nil {
				return nil, err
			}
			prog.Scripts = append(prog.Scripts, script)
		}
	}

	log.Debug("target hydrated", "variables", len(prog.Variables),
		"procedures", len(prog.Procedures), "scripts", len(prog.Scripts))
	return prog, nil
}

func hydrateProcedure(blockID string, def archive.Block, blocks map[string]archive.Block) (*Procedure, error) {
	protoRaw, ok := def.Inputs["custom_block"]
	if !ok {
		return nil, missingInput(blockID, "custom_block")
	}
	protoID, ok, err := decodeBlockRef(protoRaw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, missingInput(blockID, "custom_block")
	}
	proto, ok := blocks[protoID]
	if !ok {
		return nil, badReference(blockID, protoID)
	}
	if proto.Mutation == nil {
		return nil, missingField(protoID, "mutation")
	}

	var body *Block
	if def.Next != nil {
		body, err = buildBlock(*def.Next, blocks)
		if err != nil {
			return nil, err
		}
	}

	return &Procedure{
		ID:        proto.Mutation.ProcCode,
		Arguments: proto.Mutation.ArgumentNames,
		Body:      body,
	}, nil
}

// buildBlock builds the statement chain starting at blockID, following
// Next links until one is nil.
func buildBlock(blockID string, blocks map[string]archive.Block) (*Block, error) {
	info, ok := blocks[blockID]
	if !ok {
		return nil, badReference(blockID, blockID)
	}

	// looks_sayforsecs desugars into LooksSay(MESSAGE) -> Wait(SECS) ->
	// original next (spec.md §4.2), so its Next link is consumed by the
	// synthesized Wait rather than by the generic path below.
	if info.Opcode == "looks_sayforsecs" {
		msg, err := getInput(info, blockID, "MESSAGE", blocks)
		if err != nil {
			return nil, err
		}
		secs, err := getInput(info, blockID, "SECS", blocks)
		if err != nil {
			return nil, err
		}
		var next *Block
		if info.Next != nil {
			next, err = buildBlock(*info.Next, blocks)
			if err != nil {
				return nil, err
			}
		}
		wait := &Block{Op: &WaitOp{Seconds: secs}, Next: next}
		return &Block{Op: &LooksSayOp{Value: msg}, Next: wait}, nil
	}

	op, err := buildOp(blockID, info, blocks)
	if err != nil {
		return nil, err
	}

	var next *Block
	if info.Next != nil {
		next, err = buildBlock(*info.Next, blocks)
		if err != nil {
			return nil, err
		}
	}
	return &Block{Op: op, Next: next}, nil
}

func buildOp(blockID string, info archive.Block, blocks map[string]archive.Block) (BlockOp, error) {
	switch info.Opcode {
	case "control_repeat":
		times, err := getInput(info, blockID, "TIMES", blocks)
		if err != nil {
			return nil, err
		}
		body, err := getSubstack(info, blockID, "SUBSTACK", blocks)
		if err != nil {
			return nil, err
		}
		return &RepeatOp{Times: times, Body: body}, nil

	case "control_forever":
		body, err := getSubstack(info, blockID, "SUBSTACK", blocks)
		if err != nil {
			return nil, err
		}
		return &ForeverOp{Body: body}, nil

	case "control_wait":
		secs, err := getInput(info, blockID, "DURATION", blocks)
		if err != nil {
			return nil, err
		}
		return &WaitOp{Seconds: secs}, nil

	case "control_if_else":
		cond, err := getInput(info, blockID, "CONDITION", blocks)
		if err != nil {
			return nil, err
		}
		cons, err := getSubstack(info, blockID, "SUBSTACK", blocks)
		if err != nil {
			return nil, err
		}
		alt, err := getSubstack(info, blockID, "SUBSTACK2", blocks)
		if err != nil {
			return nil, err
		}
		return &IfElseOp{Condition: cond, Consequent: cons, Alternative: alt}, nil

	case "control_stop":
		opt, err := getField(info, blockID, "STOP_OPTION", 0)
		if err != nil {
			return nil, err
		}
		switch opt {
		case "all":
			return &StopAllOp{}, nil
		case "this script":
			return &StopScriptOp{}, nil
		default:
			return nil, missingField(blockID, "STOP_OPTION")
		}

	case "looks_say":
		val, err := getInput(info, blockID, "MESSAGE", blocks)
		if err != nil {
			return nil, err
		}
		return &LooksSayOp{Value: val}, nil

	case "event_whenflagclicked":
		return &WhenFlagClickedOp{}, nil

	case "data_setvariableto":
		id, err := getField(info, blockID, "VARIABLE", 1)
		if err != nil {
			return nil, err
		}
		val, err := getInput(info, blockID, "VALUE", blocks)
		if err != nil {
			return nil, err
		}
		return &SetVariableOp{ID: id, Value: val}, nil

	case "data_changevariableby":
		id, err := getField(info, blockID, "VARIABLE", 1)
		if err != nil {
			return nil, err
		}
		val, err := getInput(info, blockID, "VALUE", blocks)
		if err != nil {
			return nil, err
		}
		return &ChangeVariableByOp{ID: id, Value: val}, nil

	case "procedures_call":
		if info.Mutation == nil {
			return nil, missingField(blockID, "mutation")
		}
		args := make([]Value, len(info.Mutation.ArgumentIDs))
		for i, argID := range info.Mutation.ArgumentIDs {
			raw, ok := info.Inputs[argID]
			if !ok {
				return nil, missingInput(blockID, argID)
			}
			v, err := decodeValue(raw, blockID, argID, blocks)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		return &ProceduresCallOp{Proc: info.Mutation.ProcCode, Args: args}, nil

	default:
		return nil, unknownOpcode(blockID, info.Opcode)
	}
}

// buildExpression builds the pure reporter rooted at blockID.
func buildExpression(blockID string, blocks map[string]archive.Block) (BlockExpression, error) {
	info, ok := blocks[blockID]
	if !ok {
		return nil, badReference(blockID, blockID)
	}

	switch info.Opcode {
	case "operator_equals":
		left, right, err := binaryOperands(info, blockID, "OPERAND1", "OPERAND2", blocks)
		if err != nil {
			return nil, err
		}
		return &EqualsExpr{Left: left, Right: right}, nil

	case "operator_gt":
		left, right, err := binaryOperands(info, blockID, "OPERAND1", "OPERAND2", blocks)
		if err != nil {
			return nil, err
		}
		return &GreaterThanExpr{Left: left, Right: right}, nil

	case "operator_add":
		left, right, err := binaryOperands(info, blockID, "NUM1", "NUM2", blocks)
		if err != nil {
			return nil, err
		}
		return &AddExpr{Left: left, Right: right}, nil

	case "operator_subtract":
		left, right, err := binaryOperands(info, blockID, "NUM1", "NUM2", blocks)
		if err != nil {
			return nil, err
		}
		return &SubtractExpr{Left: left, Right: right}, nil

	case "argument_reporter_string_number":
		name, err := getField(info, blockID, "VALUE", 0)
		if err != nil {
			return nil, err
		}
		return &ArgumentReporterExpr{Name: name}, nil

	default:
		return nil, unknownOpcode(blockID, info.Opcode)
	}
}

func binaryOperands(info archive.Block, blockID, leftName, rightName string, blocks map[string]archive.Block) (Value, Value, error) {
	left, err := getInput(info, blockID, leftName, blocks)
	if err != nil {
		return nil, nil, err
	}
	right, err := getInput(info, blockID, rightName, blocks)
	if err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// getInput decodes the input slot named name off info, recursing into a
// nested reporter block if the slot holds a block-id reference.
func getInput(info archive.Block, blockID, name string, blocks map[string]archive.Block) (Value, error) {
	raw, ok := info.Inputs[name]
	if !ok {
		return nil, missingInput(blockID, name)
	}
	return decodeValue(raw, blockID, name, blocks)
}

// getSubstack decodes a C-shaped block's body input. A missing or null
// substack is a legal empty body, not an error: the source format allows
// an empty repeat/forever body or an if without an else.
func getSubstack(info archive.Block, blockID, name string, blocks map[string]archive.Block) (*Block, error) {
	raw, ok := info.Inputs[name]
	if !ok {
		return nil, nil
	}
	ref, ok, err := decodeBlockRef(raw)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return buildBlock(ref, blocks)
}

// decodeBlockRef decodes a two-element [shadow-tag, payload] input
// descriptor whose payload is expected to be a plain block-id string (as
// opposed to a literal record). ok is false when the payload is absent or
// JSON null, meaning "no block attached".
func decodeBlockRef(raw json.RawMessage) (id string, ok bool, err error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil || len(outer) < 2 {
		return "", false, nil
	}
	var s string
	if err := json.Unmarshal(outer[1], &s); err != nil {
		return "", false, nil
	}
	if s == "" {
		return "", false, nil
	}
	return s, true, nil
}

// decodeValue decodes the two-element [shadow-tag, payload] input
// descriptor raw into a Value, dispatching on the literal-kind table of
// spec.md §4.2. When the payload is not a literal record it is a block-id
// reference to a reporter, built recursively. A disconnected slot (null
// payload) defaults to the numeric literal 0.
func decodeValue(raw json.RawMessage, blockID, slot string, blocks map[string]archive.Block) (Value, error) {
	var outer []json.RawMessage
	if err := json.Unmarshal(raw, &outer); err != nil || len(outer) < 2 {
		return nil, missingInput(blockID, slot)
	}
	payload := outer[1]

	var lit []json.RawMessage
	if err := json.Unmarshal(payload, &lit); err == nil {
		if len(lit) < 2 {
			return nil, missingInput(blockID, slot)
		}
		var kind int
		if err := json.Unmarshal(lit[0], &kind); err != nil {
			return nil, missingInput(blockID, slot)
		}
		switch kind {
		case kindMathNum, kindPositiveNum, kindWholeNum, kindIntegerNum:
			var s string
			if err := json.Unmarshal(lit[1], &s); err != nil {
				return nil, missingInput(blockID, slot)
			}
			n, _ := strconv.ParseFloat(s, 64)
			return NumberValue{N: n}, nil
		case kindText:
			var s string
			if err := json.Unmarshal(lit[1], &s); err != nil {
				return nil, missingInput(blockID, slot)
			}
			return StringValue{S: s}, nil
		case kindVariable:
			if len(lit) < 3 {
				return nil, missingInput(blockID, slot)
			}
			var varID string
			if err := json.Unmarshal(lit[2], &varID); err != nil {
				return nil, missingInput(blockID, slot)
			}
			return LoadValue{ID: varID}, nil
		default:
			return nil, missingInput(blockID, slot)
		}
	}

	var ref string
	if err := json.Unmarshal(payload, &ref); err != nil {
		// JSON null: disconnected input slot, defaults to 0.
		return NumberValue{N: 0}, nil
	}
	if ref == "" {
		return NumberValue{N: 0}, nil
	}
	if _, ok := blocks[ref]; !ok {
		return nil, badReference(blockID, ref)
	}
	expr, err := buildExpression(ref, blocks)
	if err != nil {
		return nil, err
	}
	return ExpressionValue{Expr: expr}, nil
}

func getField(info archive.Block, blockID, name string, index int) (string, error) {
	raw, ok := info.Fields[name]
	if !ok {
		return "", missingField(blockID, name)
	}
	var arr []json.RawMessage
	if err := json.Unmarshal(raw, &arr); err != nil || len(arr) <= index {
		return "", missingField(blockID, name)
	}
	var s string
	if err := json.Unmarshal(arr[index], &s); err != nil {
		return "", missingField(blockID, name)
	}
	return s, nil
}
