package errors

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
)

func TestParseError(t *testing.T) {
	underlying := errors.New("syntax error")
	err := NewParseError("/src/Foo.jsx", 10, 5, underlying)

	if err.Type != ErrorTypeParse {
		t.Errorf("Expected Type to be ErrorTypeParse, got %v", err.Type)
	}

	if err.Line != 10 || err.Column != 5 {
		t.Errorf("Expected Line/Column to be 10:5, got %d:%d", err.Line, err.Column)
	}

	if !errors.Is(err, underlying) {
		t.Errorf("Expected error to unwrap to underlying error")
	}

	expectedMsg := "parse error at /src/Foo.jsx:10:5: syntax error"
	if err.Error() != expectedMsg {
		t.Errorf("Expected error message %q, got %q", expectedMsg, err.Error())
	}

	wrapped := fmt.Errorf("rewrite: %w", err)
	if !IsParseError(wrapped) {
		t.Errorf("Expected wrapped error to be detected as parse error")
	}
}

func TestParseErrorWithoutPosition(t *testing.T) {
	err := NewParseError("a.js", 0, 0, errors.New("empty tree"))
	if err.Error() != "parse error in a.js: empty tree" {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestFileError(t *testing.T) {
	err := NewFileError("read", "/missing.js", fs.ErrNotExist)
	if err.Type != ErrorTypeFileNotFound {
		t.Errorf("Expected ErrorTypeFileNotFound, got %v", err.Type)
	}

	err = NewFileError("write", "/ro.js", fs.ErrPermission)
	if err.Type != ErrorTypePermission {
		t.Errorf("Expected ErrorTypePermission, got %v", err.Type)
	}

	err = NewFileError("write", "/x.js", errors.New("disk full"))
	if err.Type != ErrorTypeIO {
		t.Errorf("Expected ErrorTypeIO, got %v", err.Type)
	}
	if !strings.Contains(err.Error(), "file write failed for /x.js") {
		t.Errorf("unexpected message %q", err.Error())
	}
}

func TestConfigError(t *testing.T) {
	err := NewConfigError("mode", "wrapp", errors.New("unknown mode")).WithSuggestion("wrap")

	if !strings.Contains(err.Error(), `did you mean "wrap"?`) {
		t.Errorf("Expected suggestion in message, got %q", err.Error())
	}

	modeErr := NewConfigError("removeImport", "true", ErrRemoveImportMode)
	if !errors.Is(modeErr, ErrRemoveImportMode) {
		t.Errorf("Expected config error to unwrap to ErrRemoveImportMode")
	}
	if !IsConfigError(fmt.Errorf("load: %w", modeErr)) {
		t.Errorf("Expected wrapped config error to be detected")
	}
}

func TestMultiError(t *testing.T) {
	var empty *MultiError
	if empty.ErrorOrNil() != nil {
		t.Errorf("nil MultiError should collapse to nil")
	}

	me := NewMultiError([]error{nil, errors.New("a"), nil})
	if len(me.Errors) != 1 {
		t.Fatalf("Expected nil errors to be filtered, got %d", len(me.Errors))
	}
	if me.Error() != "a" {
		t.Errorf("Expected single error message, got %q", me.Error())
	}

	me = NewMultiError([]error{errors.New("a"), errors.New("b")})
	if !strings.HasPrefix(me.Error(), "2 errors") {
		t.Errorf("unexpected message %q", me.Error())
	}
	if me.ErrorOrNil() == nil {
		t.Errorf("Expected non-nil error")
	}
}
