package replication

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/ops"
	"github.com/StrumentiResistenti/MagmaFS-sub000/internal/wire"
)

// DefaultQueueSize bounds the pending-task channel; a full queue drops
// the task being enqueued rather than blocking the operation
// that triggered it, matching the "replica queue may reorder" tolerance
// spec.md §4.10 already requires callers to accept.
const DefaultQueueSize = 1024

// Queue is the single-consumer replica queue of spec.md §4.10. It
// implements ops.Replicator.
type Queue struct {
	server *ops.Server
	tasks  chan ops.ReplicaTask
	log    *logrus.Entry

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewQueue returns a Queue bound to server, which supplies the flare
// cache/store for transmit_key and the Send function for forwarding.
func NewQueue(server *ops.Server, log *logrus.Entry) *Queue {
	return &Queue{
		server: server,
		tasks:  make(chan ops.ReplicaTask, DefaultQueueSize),
		log:    log,
	}
}

// Enqueue implements ops.Replicator: a non-blocking send that drops and
// logs on a full queue rather than stalling the caller.
func (q *Queue) Enqueue(task ops.ReplicaTask) {
	select {
	case q.tasks <- task:
	default:
		q.log.WithFields(logrus.Fields{
			"op":     task.Op.String(),
			"path":   task.Path,
			"target": task.Target.Nickname,
		}).Warn("replica queue full, dropping task")
	}
}

// Start runs the single consumer goroutine until ctx is canceled or Stop
// is called, with the same shape as the balancer loop: a cancelable
// background loop plus a WaitGroup for a clean Stop.
func (q *Queue) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	q.cancel = cancel

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		for {
			select {
			case task := <-q.tasks:
				q.execute(runCtx, task)
			case <-runCtx.Done():
				return
			}
		}
	}()
}

// Stop cancels the consumer and waits for it to drain its current task.
func (q *Queue) Stop() {
	if q.cancel != nil {
		q.cancel()
	}
	q.wg.Wait()
}

// execute dispatches one task to the whole-object transmitter or the
// decremented-TTL forwarder, per spec.md §4.10.
func (q *Queue) execute(ctx context.Context, task ops.ReplicaTask) {
	var err error
	switch task.Op {
	case wire.OpUnlink, wire.OpRmdir, wire.OpTruncate:
		err = q.forwardDecremented(ctx, task)
	default:
		err = q.transmitKey(ctx, task)
	}
	if err != nil {
		q.log.WithError(err).WithFields(logrus.Fields{
			"op":     task.Op.String(),
			"path":   task.Path,
			"target": task.Target.Nickname,
		}).Warn("replica task failed")
	}
}
