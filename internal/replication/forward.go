package replication

import (
	"context"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// forwardDecremented resends task's original request to task.Target
// with its TTL decremented by one, per spec.md §4.10: unlink, rmdir and
// truncate replicate by forwarding rather than by whole-object transfer.
func (q *Queue) forwardDecremented(ctx context.Context, task ops.ReplicaTask) error {
	header := task.Header
	if header.TTL > 0 {
		header.TTL--
	}
	header.TransactionID = q.server.Txids.Next()

	e := wire.NewEncoder()
	e.PutRequestHeader(header)
	payload := append(e.Bytes(), task.Body...)

	_, err := q.server.Send(ops.NodeAddr(task.Target), payload)
	return err
}
