package lock

import (
	"context"
	"fmt"
)

// Lock 已持有的锁
type Lock interface {
	Unlock(ctx context.Context) error
}

// Locker 按 key 互斥
//
// 同一 key 同一时刻只有一个持有者，不同 key 互不影响。
// 对同一账户的 use / cancel 都必须先拿到该账户的锁
type Locker interface {
	Obtain(ctx context.Context, key string) (Lock, error)
}

// AccountLockKey 账户维度的锁
func AccountLockKey(accountNumber string) string {
	return fmt.Sprintf("account:lock:%s", accountNumber)
}

// CreateAccountLockKey 开户时分配账户号需要串行
const CreateAccountLockKey = "account:lock:create"
