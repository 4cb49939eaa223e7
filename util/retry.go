package util

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	ErrTimeout = errors.New("Timeout")
)

// Retry 最多执行 cb number 次, 直到其返回nil; 两次执行之间等待 sleep.
// ctx 结束时返回 ErrTimeout.
func Retry(ctx context.Context, cb func() error,
	number int, sleep time.Duration) error {
	var err error
	for i := 0; i < number; i++ {
		err = cb()
		if err == nil {
			return err
		}
		if i == number-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ErrTimeout
		case <-time.After(sleep):
		}
	}
	return err
}
