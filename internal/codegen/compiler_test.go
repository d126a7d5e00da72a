package codegen

import (
	"testing"

	"tinygo.org/x/go-llvm"

	"github.com/scratchc/scratchc/internal/hydrate"
)

func TestCompileProducesVerifiableModule(t *testing.T) {
	prog := &hydrate.Program{
		Variables: []string{"v1"},
		Procedures: []*hydrate.Procedure{
			{
				ID:        "inc %s",
				Arguments: []string{"amount"},
				Body: &hydrate.Block{
					Op: &hydrate.ChangeVariableByOp{
						ID:    "v1",
						Value: hydrate.ExpressionValue{Expr: &hydrate.ArgumentReporterExpr{Name: "amount"}},
					},
				},
			},
		},
		Scripts: []*hydrate.Block{
			{
				Op: &hydrate.WhenFlagClickedOp{},
				Next: &hydrate.Block{
					Op: &hydrate.RepeatOp{
						Times: hydrate.NumberValue{N: 3},
						Body: &hydrate.Block{
							Op: &hydrate.ProceduresCallOp{
								Proc: "inc %s",
								Args: []hydrate.Value{hydrate.NumberValue{N: 1}},
							},
						},
					},
					Next: &hydrate.Block{
						Op: &hydrate.IfElseOp{
							Condition: hydrate.ExpressionValue{Expr: &hydrate.GreaterThanExpr{
								Left:  hydrate.LoadValue{ID: "v1"},
								Right: hydrate.NumberValue{N: 2},
							}},
							Consequent: &hydrate.Block{Op: &hydrate.LooksSayOp{Value: hydrate.StringValue{S: "big"}}},
						},
						Next: &hydrate.Block{Op: &hydrate.StopAllOp{}},
					},
				},
			},
		},
	}

	mod := NewModule("test")
	defer mod.Dispose()

	if err := Compile(mod, prog); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if err := llvm.VerifyModule(mod.LLVMModule(), llvm.ReturnStatusAction); err != nil {
		t.Fatalf("module failed verification: %v", err)
	}
}

func TestCompileUndefinedProcedure(t *testing.T) {
	prog := &hydrate.Program{
		Scripts: []*hydrate.Block{
			{Op: &hydrate.ProceduresCallOp{Proc: "missing"}},
		},
	}

	mod := NewModule("test")
	defer mod.Dispose()

	err := Compile(mod, prog)
	if err == nil {
		t.Fatal("expected an error for a call to an undefined procedure")
	}
	cerr, ok := err.(*CodeGenError)
	if !ok {
		t.Fatalf("expected *CodeGenError, got %T", err)
	}
	if cerr.Kind != ErrUndefinedProcedure {
		t.Errorf("expected ErrUndefinedProcedure, got %v", cerr.Kind)
	}
}
