package shared

import "fmt"

// AccountLockKey builds redis keys for per-account payment critical sections.
func AccountLockKey(accountID int64) string {
	return fmt.Sprintf("receivables:account:%d:lock", accountID)
}
