package basic

import "context"

// Cancelled 若 ctx 已结束, 则返回true. 不阻塞.
func Cancelled(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return true
	default:
		return false
	}
}
