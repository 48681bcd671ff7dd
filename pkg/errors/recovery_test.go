package errors

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestRecover_WithPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "GridSearchCV.fit")
		panic("test panic message")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error from recovered panic, got nil")
	}

	var panicErr *PanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected PanicError, got %T", err)
	}
	if panicErr.Operation != "GridSearchCV.fit" {
		t.Errorf("Expected operation 'GridSearchCV.fit', got '%s'", panicErr.Operation)
	}
	if panicErr.PanicValue != "test panic message" {
		t.Errorf("Expected panic value 'test panic message', got '%v'", panicErr.PanicValue)
	}
	if panicErr.StackTrace == "" {
		t.Error("Expected non-empty stack trace")
	}

	expectedMsg := "panic in GridSearchCV.fit: test panic message"
	if panicErr.Error() != expectedMsg {
		t.Errorf("Expected error message '%s', got '%s'", expectedMsg, panicErr.Error())
	}
}

func TestRecover_WithoutPanic(t *testing.T) {
	testFunc := func() (err error) {
		defer Recover(&err, "GridSearchCV.fit")
		return nil
	}

	if err := testFunc(); err != nil {
		t.Fatalf("Expected no error when no panic occurs, got: %v", err)
	}
}

func TestRecover_WithExistingError(t *testing.T) {
	originalErr := fmt.Errorf("original error")

	testFunc := func() (err error) {
		defer Recover(&err, "GridSearchCV.fit")
		err = originalErr
		panic("panic after error")
	}

	err := testFunc()
	if err == nil {
		t.Fatal("Expected error, got nil")
	}
	if !strings.Contains(err.Error(), "panic in GridSearchCV.fit") {
		t.Errorf("Error message should contain panic info: %s", err.Error())
	}
	if !errors.Is(err, originalErr) {
		t.Error("original error should stay in the chain")
	}
}

func TestSafeExecute(t *testing.T) {
	testCases := []struct {
		name          string
		fn            func() error
		expectedInErr string
		wantPanic     bool
	}{
		{
			name:          "string panic",
			fn:            func() error { panic("unexpected nil pointer") },
			expectedInErr: "panic in fit: unexpected nil pointer",
			wantPanic:     true,
		},
		{
			name:          "error panic",
			fn:            func() error { panic(errors.New("matrix dimension error")) },
			expectedInErr: "panic in fit: matrix dimension error",
			wantPanic:     true,
		},
		{
			name:          "nil panic",
			fn:            func() error { panic(nil) },
			expectedInErr: "panic called with nil argument",
			wantPanic:     true,
		},
		{
			name:          "plain error",
			fn:            func() error { return ErrSingleClass },
			expectedInErr: "single class",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := SafeExecute("fit", tc.fn)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tc.expectedInErr) {
				t.Errorf("error %q should contain %q", err.Error(), tc.expectedInErr)
			}
			var panicErr *PanicError
			if got := errors.As(err, &panicErr); got != tc.wantPanic {
				t.Errorf("errors.As(PanicError) = %v, want %v", got, tc.wantPanic)
			}
			if tc.wantPanic && !strings.Contains(panicErr.String(), "Stack trace:") {
				t.Error("String() should include the stack trace")
			}
		})
	}
}

func TestPanicError_UnwrapsErrorValue(t *testing.T) {
	err := SafeExecute("fit", func() error { panic(ErrEmptyData) })
	if !errors.Is(err, ErrEmptyData) {
		t.Error("a panic carrying an error should unwrap to it")
	}
}
