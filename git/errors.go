package git

import "fmt"

//Op names a backend operation in an Error
type Op string

const (
	OpClone      Op = "clone"
	OpCheckout   Op = "checkout"
	OpFetchMerge Op = "fetch-merge"
	OpStatus     Op = "status"
	OpCommit     Op = "commit"
	OpPush       Op = "push"
)

//Error is returned by every Backend operation that fails
type Error struct {
	Op   Op
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("git %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
