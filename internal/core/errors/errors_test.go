package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestDomainError(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		err := New(CodeNotFound, "input directory not found")
		if err.Error() != "[NOT_FOUND] input directory not found" {
			t.Errorf("expected [NOT_FOUND] input directory not found, got %s", err.Error())
		}
	})

	t.Run("Wrap", func(t *testing.T) {
		original := errors.New("unexpected token")
		err := Wrap(original, CodeParse, "parse chunk")
		expected := "[PARSE_ERROR] parse chunk: unexpected token"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
		if !errors.Is(err, original) {
			t.Error("expected wrapped error to unwrap to the original")
		}
	})

	t.Run("IsCodeThroughFmtWrap", func(t *testing.T) {
		err := fmt.Errorf("phase imports: %w", New(CodeIO, "read failed"))
		if !IsCode(err, CodeIO) {
			t.Error("expected IsCode to see through fmt wrapping")
		}
		if IsCode(err, CodeParse) {
			t.Error("expected IsCode to return false for CodeParse")
		}
	})

	t.Run("AddContext", func(t *testing.T) {
		err := AddContext(New(CodeParse, "bad syntax"), CtxChunk, "42")
		var de *DomainError
		if !errors.As(err, &de) {
			t.Fatal("expected DomainError")
		}
		if de.Context[CtxChunk] != "42" {
			t.Errorf("expected chunk context, got %v", de.Context)
		}

		plain := AddContext(errors.New("boom"), CtxPath, "/tmp/a.js")
		if !IsCode(plain, CodeInternal) {
			t.Error("expected plain errors to be wrapped as internal")
		}
	})

	t.Run("ErrorListsSortedContext", func(t *testing.T) {
		err := AddContext(AddContext(New(CodeParse, "bad syntax"), CtxPath, "main.js"), CtxChunk, "42")
		expected := "[PARSE_ERROR] bad syntax (chunk=42 path=main.js)"
		if err.Error() != expected {
			t.Errorf("expected %s, got %s", expected, err.Error())
		}
	})

	t.Run("AddContextKeepsOuterWrap", func(t *testing.T) {
		err := AddContext(fmt.Errorf("extract: %w", New(CodeIO, "read failed")), CtxPath, "/dist")
		if !strings.HasPrefix(err.Error(), "extract: ") {
			t.Errorf("expected the outer message to survive, got %s", err.Error())
		}
		if !IsCode(err, CodeIO) {
			t.Error("expected the code to survive")
		}
	})

	t.Run("CodeOf", func(t *testing.T) {
		if got := CodeOf(errors.New("plain")); got != "" {
			t.Errorf("expected empty code, got %q", got)
		}
		if got := CodeOf(New(CodeNotSupported, "x")); got != CodeNotSupported {
			t.Errorf("expected NOT_SUPPORTED, got %q", got)
		}
	})

	t.Run("LogArgs", func(t *testing.T) {
		err := AddContext(New(CodeNotFound, "chunk not found"), CtxChunk, "7")
		args := LogArgs(err)
		want := []any{"error", err, "code", "NOT_FOUND", "chunk", "7"}
		if fmt.Sprint(args) != fmt.Sprint(want) {
			t.Errorf("expected %v, got %v", want, args)
		}
		if got := LogArgs(errors.New("plain")); len(got) != 2 {
			t.Errorf("expected only the error pair, got %v", got)
		}
	})
}
