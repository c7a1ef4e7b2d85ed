package bterrors

import (
	"strings"
	"testing"
)

func TestSyntaxErrorMessage(t *testing.T) {
	err := NewSyntax(4, "identifier", "NUMBER")
	if err.Kind != SyntaxError {
		t.Errorf("got kind %s", err.Kind)
	}
	if !strings.Contains(err.Error(), "expected identifier, got NUMBER") {
		t.Errorf("message missing expected/got detail: %s", err.Error())
	}
	if !strings.Contains(err.Error(), "line 4") {
		t.Errorf("message missing line: %s", err.Error())
	}
}

func TestWithSourceRendersCaret(t *testing.T) {
	err := NewType(2, "cannot compare struct to number").WithSource("x = a < 3", 5)
	msg := err.Error()
	if !strings.Contains(msg, "x = a < 3") {
		t.Errorf("missing source line: %s", msg)
	}
	if !strings.Contains(msg, "^") {
		t.Errorf("missing caret: %s", msg)
	}
}
