package kernel

import "testing"

func TestErrorMessage(t *testing.T) {
	err := &Error{
		Module:  "multiboot",
		Message: "something went wrong",
	}

	if err.Error() != err.Message {
		t.Fatalf("expected err.Error() to return %q; got %q", err.Message, err.Error())
	}
}
