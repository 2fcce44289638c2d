package errors

import "fmt"

var (
	ErrUserAlreadyExists = fmt.Errorf("user already exists")
	ErrInvalidPassword   = fmt.Errorf("password does not meet complexity requirements")
	ErrBufferFull        = fmt.Errorf("pending buffer full")
	ErrSessionClosed     = fmt.Errorf("session closed")
)
