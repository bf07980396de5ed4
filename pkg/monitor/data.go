package monitor

import (
	"time"

	"github.com/mwhite/fleetsync/internal/store"
	syncengine "github.com/mwhite/fleetsync/internal/sync"
)

// FetchData retrieves everything the dashboard displays in one pass.
// Errors are carried on the message so a transient failure shows up in
// the footer instead of killing the program.
func FetchData(st *store.Store, reconciler *syncengine.Reconciler, owner string) RefreshDataMsg {
	msg := RefreshDataMsg{Timestamp: time.Now()}

	status, err := reconciler.Status(owner)
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Status = status

	queue, err := st.PendingAll()
	if err != nil {
		msg.Err = err
		return msg
	}
	msg.Queue = queue

	msg.Buckets = reconciler.Limiter().Snapshot()
	return msg
}
