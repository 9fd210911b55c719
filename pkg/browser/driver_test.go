package browser

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestWaitForAnyElement_EmptySelectors(t *testing.T) {
	d := &Driver{}

	_, err := d.WaitForAnyElement(nil, time.Second)
	if !errors.Is(err, ErrElementTimeout) {
		t.Errorf("err = %v, want ErrElementTimeout", err)
	}

	_, err = d.WaitForAnyElement([]string{}, time.Second)
	if !errors.Is(err, ErrElementTimeout) {
		t.Errorf("err = %v, want ErrElementTimeout", err)
	}
}

func TestIsTimeout(t *testing.T) {
	tests := []struct {
		err      error
		expected bool
	}{
		{nil, false},
		{errors.New("Timeout 30000ms exceeded"), true},
		{errors.New("TimeoutError: waiting for locator"), true},
		{fmt.Errorf("wrapped: %w", errors.New("timeout")), true},
		{errors.New("element is not attached to the DOM"), false},
	}

	for _, test := range tests {
		if got := isTimeout(test.err); got != test.expected {
			t.Errorf("isTimeout(%v) = %v, want %v", test.err, got, test.expected)
		}
	}
}
