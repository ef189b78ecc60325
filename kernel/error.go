package kernel

// Error describes an error raised by one of the kernel subsystems. Kernel
// errors are always defined as global variables that are pointers to the
// Error structure: the Go allocator is not available on the early boot path
// so errors.New cannot be used.
type Error struct {
	// The subsystem where the error occurred.
	Module string

	// The error message.
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return e.Message
}
