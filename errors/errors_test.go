package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:  PhaseTranslate,
				Kind:   KindUnresolvedLabel,
				Path:   []string{"func[2]", "body"},
				Opcode: "br_if",
				Detail: "depth 3",
			},
			contains: []string{"[translate]", "unresolved_label", "func[2].body", "(br_if)", "depth 3"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseDecode,
				Kind:  KindOutOfBounds,
			},
			contains: []string{"[decode]", "out_of_bounds"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseDeploy,
				Kind:   KindEngine,
				Detail: "create contract",
				Cause:  errors.New("out of gas"),
			},
			contains: []string{"[deploy]", "engine", "create contract", "caused by", "out of gas"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := Deploy("func[0]", cause)

	if !errors.Is(err, cause) {
		t.Error("errors.Is did not find cause")
	}

	wrapped := fmt.Errorf("instantiate: %w", err)
	var target *Error
	if !errors.As(wrapped, &target) {
		t.Fatal("errors.As did not find *Error")
	}
	if target.Phase != PhaseDeploy {
		t.Errorf("phase = %s, want %s", target.Phase, PhaseDeploy)
	}
}

func TestError_Is(t *testing.T) {
	err := NotFound(PhaseInvoke, "export", "add")

	tests := []struct {
		name   string
		target error
		want   bool
	}{
		{"same phase and kind", &Error{Phase: PhaseInvoke, Kind: KindNotFound}, true},
		{"different kind", &Error{Phase: PhaseInvoke, Kind: KindInvalidInput}, false},
		{"different phase", &Error{Phase: PhaseLoad, Kind: KindNotFound}, false},
		{"plain error", errors.New("not found"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errors.Is(err, tt.target); got != tt.want {
				t.Errorf("errors.Is = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestBuilder(t *testing.T) {
	err := New(PhaseTranslate, KindUnsupported).
		Path(FuncPath(7)).
		Opcode("f32.add").
		Value(0x92).
		Detail("floating point %s", "arithmetic").
		Build()

	if err.Phase != PhaseTranslate || err.Kind != KindUnsupported {
		t.Errorf("unexpected phase/kind: %s/%s", err.Phase, err.Kind)
	}
	if len(err.Path) != 1 || err.Path[0] != "func[7]" {
		t.Errorf("path = %v", err.Path)
	}
	if err.Detail != "floating point arithmetic" {
		t.Errorf("detail = %q", err.Detail)
	}
	if err.Value != 0x92 {
		t.Errorf("value = %v", err.Value)
	}
	want := "[translate] unsupported at func[7] (f32.add): floating point arithmetic"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name  string
		err   *Error
		phase Phase
		kind  Kind
	}{
		{"Unsupported", Unsupported(PhaseTranslate, "call_indirect"), PhaseTranslate, KindUnsupported},
		{"UnresolvedLabel", UnresolvedLabel([]string{"func[0]"}, "br", 5, 1), PhaseTranslate, KindUnresolvedLabel},
		{"DuplicateLabel", DuplicateLabel("L1"), PhaseAssemble, KindDuplicateLabel},
		{"OutOfBounds", OutOfBounds(PhaseDecode, nil, 4, 2), PhaseDecode, KindOutOfBounds},
		{"Overflow", Overflow(PhasePackage, nil, 70000, "PUSH2 range"), PhasePackage, KindOverflow},
		{"InvalidData", InvalidData(PhaseDecode, nil, "bad magic"), PhaseDecode, KindInvalidData},
		{"Wrap", Wrap(PhaseAssemble, KindInvalidData, errors.New("x"), "assemble"), PhaseAssemble, KindInvalidData},
		{"NotFound", NotFound(PhaseInvoke, "export", "sub"), PhaseInvoke, KindNotFound},
		{"InvalidInput", InvalidInput(PhaseInvoke, "too many arguments"), PhaseInvoke, KindInvalidInput},
		{"Instantiation", Instantiation("func[1]", errors.New("x")), PhaseDeploy, KindInstantiation},
		{"Deploy", Deploy("func[1]", errors.New("x")), PhaseDeploy, KindEngine},
		{"Load", Load("read file", errors.New("x")), PhaseLoad, KindInvalidData},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Phase != tt.phase {
				t.Errorf("phase = %s, want %s", tt.err.Phase, tt.phase)
			}
			if tt.err.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", tt.err.Kind, tt.kind)
			}
			if tt.err.Error() == "" {
				t.Error("empty error message")
			}
		})
	}
}

func TestUnresolvedLabel_Detail(t *testing.T) {
	err := UnresolvedLabel([]string{"func[3]"}, "br_if", 2, 1)
	if !strings.Contains(err.Error(), "branch depth 2 exceeds label stack of 1") {
		t.Errorf("unexpected message: %s", err.Error())
	}
	if err.Value != uint32(2) {
		t.Errorf("value = %v, want 2", err.Value)
	}
}

func TestMatchAndAs(t *testing.T) {
	inner := UnresolvedLabel([]string{FuncPath(0)}, "br", 4, 2)
	wrapped := fmt.Errorf("compile: %w", inner)

	if !Match(wrapped, PhaseTranslate, KindUnresolvedLabel) {
		t.Error("Match should see through fmt wrapping")
	}
	if Match(wrapped, PhaseAssemble, KindUnresolvedLabel) {
		t.Error("Match should compare phase")
	}
	if Match(errors.New("plain"), PhaseTranslate, KindUnresolvedLabel) {
		t.Error("Match should reject foreign errors")
	}

	got, ok := As(wrapped)
	if !ok || got != inner {
		t.Fatalf("As = %v, %v; want the wrapped *Error", got, ok)
	}
	if _, ok := As(errors.New("plain")); ok {
		t.Error("As should fail for foreign errors")
	}
}
