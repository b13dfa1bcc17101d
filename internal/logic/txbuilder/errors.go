package txbuilder

import (
	"errors"
	"fmt"
)

// ErrOversize 两次尝试后交易仍超过线上字节预算
var ErrOversize = errors.New("transaction exceeds wire budget after retry")

// OversizeError 携带最后一次尝试的大小
type OversizeError struct {
	Size     int
	Budget   int
	Attempts int
	Inline   int // 最后一次编译后仍内联的可压缩账户数
}

func (e *OversizeError) Error() string {
	return fmt.Sprintf("transaction too large: %d > %d bytes after %d attempts (%d accounts inline)",
		e.Size, e.Budget, e.Attempts, e.Inline)
}

func (e *OversizeError) Is(target error) bool {
	return target == ErrOversize
}
