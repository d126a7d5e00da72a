package hydrate

import (
	"encoding/json"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/scratchc/scratchc/internal/archive"
)

func strp(s string) *string { return &s }

func numLiteral(n string) json.RawMessage {
	return json.RawMessage(`[1,[4,"` + n + `"]]`)
}

func textLiteral(s string) json.RawMessage {
	return json.RawMessage(`[1,[10,"` + s + `"]]`)
}

func varLoad(varID string) json.RawMessage {
	return json.RawMessage(`[3,[12,"` + varID + `","` + varID + `"]]`)
}

func blockRef(id string) json.RawMessage {
	return json.RawMessage(`[2,"` + id + `"]`)
}

func TestHydrateSimpleScript(t *testing.T) {
	blocks := map[string]archive.Block{
		"hat": {
			Opcode:   "event_whenflagclicked",
			Next:     strp("say"),
			TopLevel: true,
		},
		"say": {
			Opcode: "looks_say",
			Next:   strp("set"),
			Inputs: map[string]json.RawMessage{
				"MESSAGE": textLiteral("hi"),
			},
		},
		"set": {
			Opcode: "data_setvariableto",
			Fields: map[string]json.RawMessage{
				"VARIABLE": json.RawMessage(`["score","v1"]`),
			},
			Inputs: map[string]json.RawMessage{
				"VALUE": numLiteral("1"),
			},
		},
	}

	target := archive.Target{
		Variables: map[string]archive.Variable{"v1": {Name: "score"}},
		Blocks:    blocks,
	}

	prog, err := Hydrate(target)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}
	if len(prog.Scripts) != 1 {
		t.Fatalf("expected 1 script, got %d", len(prog.Scripts))
	}

	want := &Block{
		Op: &WhenFlagClickedOp{},
		Next: &Block{
			Op: &LooksSayOp{Value: StringValue{S: "hi"}},
			Next: &Block{
				Op: &SetVariableOp{ID: "v1", Value: NumberValue{N: 1}},
			},
		},
	}
	if diff := cmp.Diff(want, prog.Scripts[0]); diff != "" {
		t.Errorf("hydrated script mismatch (-want +got):\n%s", diff)
	}
}

func TestHydrateSayForSecsDesugars(t *testing.T) {
	blocks := map[string]archive.Block{
		"hat": {
			Opcode:   "event_whenflagclicked",
			Next:     strp("say"),
			TopLevel: true,
		},
		"say": {
			Opcode: "looks_sayforsecs",
			Inputs: map[string]json.RawMessage{
				"MESSAGE": textLiteral("hi"),
				"SECS":    numLiteral("2"),
			},
		},
	}
	target := archive.Target{Blocks: blocks}

	prog, err := Hydrate(target)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}

	script := prog.Scripts[0]
	say, ok := script.Next.Op.(*LooksSayOp)
	if !ok {
		t.Fatalf("expected LooksSayOp after hat, got %T", script.Next.Op)
	}
	if say.Value != (StringValue{S: "hi"}) {
		t.Errorf("unexpected say value: %+v", say.Value)
	}
	wait, ok := script.Next.Next.Op.(*WaitOp)
	if !ok {
		t.Fatalf("expected WaitOp after say, got %T", script.Next.Next.Op)
	}
	if wait.Seconds != (NumberValue{N: 2}) {
		t.Errorf("unexpected wait seconds: %+v", wait.Seconds)
	}
	if script.Next.Next.Next != nil {
		t.Errorf("expected chain to end after synthesized wait")
	}
}

func TestHydrateRepeatWithNestedExpression(t *testing.T) {
	blocks := map[string]archive.Block{
		"hat": {
			Opcode:   "event_whenflagclicked",
			Next:     strp("rep"),
			TopLevel: true,
		},
		"rep": {
			Opcode: "control_repeat",
			Inputs: map[string]json.RawMessage{
				"TIMES":    blockRef("add"),
				"SUBSTACK": blockRef("change"),
			},
		},
		"add": {
			Opcode: "operator_add",
			Inputs: map[string]json.RawMessage{
				"NUM1": numLiteral("1"),
				"NUM2": varLoad("v1"),
			},
		},
		"change": {
			Opcode: "data_changevariableby",
			Fields: map[string]json.RawMessage{
				"VARIABLE": json.RawMessage(`["score","v1"]`),
			},
			Inputs: map[string]json.RawMessage{
				"VALUE": numLiteral("1"),
			},
		},
	}
	target := archive.Target{Blocks: blocks}

	prog, err := Hydrate(target)
	if err != nil {
		t.Fatalf("Hydrate: %v", err)
	}

	rep, ok := prog.Scripts[0].Next.Op.(*RepeatOp)
	if !ok {
		t.Fatalf("expected RepeatOp, got %T", prog.Scripts[0].Next.Op)
	}
	times, ok := rep.Times.(ExpressionValue)
	if !ok {
		t.Fatalf("expected Times to lower the referenced reporter as an expression, got %T", rep.Times)
	}
	if _, ok := times.Expr.(*AddExpr); !ok {
		t.Errorf("expected an AddExpr, got %T", times.Expr)
	}
	if rep.Body == nil {
		t.Fatal("expected a repeat body")
	}
	if _, ok := rep.Body.Op.(*ChangeVariableByOp); !ok {
		t.Errorf("expected ChangeVariableByOp body, got %T", rep.Body.Op)
	}
}

func TestHydrateUnknownOpcode(t *testing.T) {
	blocks := map[string]archive.Block{
		"hat": {Opcode: "looks_nonexistent", TopLevel: true},
	}
	target := archive.Target{Blocks: blocks}

	_, err := Hydrate(target)
	if err == nil {
		t.Fatal("expected an error for an unknown opcode")
	}
	herr, ok := err.(*HydrateError)
	if !ok {
		t.Fatalf("expected *HydrateError, got %T", err)
	}
	if herr.Kind != ErrUnknownOpcode {
		t.Errorf("expected ErrUnknownOpcode, got %v", herr.Kind)
	}
}

func TestHydrateMissingInput(t *testing.T) {
	blocks := map[string]archive.Block{
		"hat": {Opcode: "looks_say", TopLevel: true},
	}
	target := archive.Target{Blocks: blocks}

	_, err := Hydrate(target)
	if err == nil {
		t.Fatal("expected an error for a missing input")
	}
	herr, ok := err.(*HydrateError)
	if !ok {
		t.Fatalf("expected *HydrateError, got %T", err)
	}
	if herr.Kind != ErrMissingInput {
		t.Errorf("expected ErrMissingInput, got %v", herr.Kind)
	}
}
