package queue

import (
	"sort"
	"sync"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"github.com/twitter/enginedispatch/common/log/tags"
	"github.com/twitter/enginedispatch/common/stats"
	"github.com/twitter/enginedispatch/domain"
)

// GroupQueue is one entry of a Snapshot.
type GroupQueue struct {
	Name  string
	Queue *OrderedJobQueue
}

// GroupPriorityQueue maps group names to their OrderedJobQueue.
// The default group exists for the lifetime of the instance.
type GroupPriorityQueue struct {
	// 64-bit atomics first for alignment on 32-bit platforms.
	sequence uint64
	numGroup int64

	// group name -> *OrderedJobQueue
	groups sync.Map

	// Closed and replaced on every Add so a dispatcher can sleep until new work arrives.
	wakeMu sync.Mutex
	wake   chan struct{}

	stat stats.StatsReceiver
}

func NewGroupPriorityQueue(stat stats.StatsReceiver) *GroupPriorityQueue {
	if stat == nil {
		stat = stats.NilStatsReceiver()
	}
	g := &GroupPriorityQueue{wake: make(chan struct{}), stat: stat.Scope("queue")}
	g.groups.Store(domain.DefaultGroupName, NewOrderedJobQueue(domain.DefaultGroupName))
	g.numGroup = 1
	g.stat.Gauge(stats.QueueGroupsGauge).Update(1)
	return g
}

// Add routes job to its group, creating the group on first use, and enqueues it.
// The job's GroupName is normalized and its Sequence stamped here.
func (g *GroupPriorityQueue) Add(job *domain.Job) {
	job.GroupName = domain.NormalizeGroup(job.GroupName)
	job.Sequence = atomic.AddUint64(&g.sequence, 1)
	g.enqueue(job)
}

// Requeue puts back a job taken from its group without restamping its
// Sequence, so it keeps its place ahead of later jobs of the same priority.
// A job that never went through Add is stamped as Add would.
func (g *GroupPriorityQueue) Requeue(job *domain.Job) {
	if job.Sequence == 0 {
		g.Add(job)
		return
	}
	job.GroupName = domain.NormalizeGroup(job.GroupName)
	g.enqueue(job)
}

func (g *GroupPriorityQueue) enqueue(job *domain.Job) {
	g.queueFor(job.GroupName).Add(job)
	g.stat.Counter(stats.QueueEnqueuedCounter).Inc(1)

	g.wakeMu.Lock()
	close(g.wake)
	g.wake = make(chan struct{})
	g.wakeMu.Unlock()
}

// queueFor returns the group's queue, creating it if absent. Two callers racing
// on a new group both get the instance that won LoadOrStore.
func (g *GroupPriorityQueue) queueFor(name string) *OrderedJobQueue {
	if q, ok := g.groups.Load(name); ok {
		return q.(*OrderedJobQueue)
	}
	q, loaded := g.groups.LoadOrStore(name, NewOrderedJobQueue(name))
	if !loaded {
		n := atomic.AddInt64(&g.numGroup, 1)
		g.stat.Gauge(stats.QueueGroupsGauge).Update(n)
		log.WithFields(log.Fields{tags.Group: name}).Info("created group queue")
	}
	return q.(*OrderedJobQueue)
}

// CreateGroup makes sure the group exists, so it shows up in Snapshot before its first job.
func (g *GroupPriorityQueue) CreateGroup(name string) *OrderedJobQueue {
	return g.queueFor(domain.NormalizeGroup(name))
}

// Group returns the queue for name, normalized like Add does.
func (g *GroupPriorityQueue) Group(name string) (*OrderedJobQueue, bool) {
	q, ok := g.groups.Load(domain.NormalizeGroup(name))
	if !ok {
		return nil, false
	}
	return q.(*OrderedJobQueue), true
}

// Snapshot returns the current groups sorted by name. Groups created after
// the call may be missing; callers re-snapshot on every pass.
func (g *GroupPriorityQueue) Snapshot() []GroupQueue {
	var out []GroupQueue
	g.groups.Range(func(k, v interface{}) bool {
		out = append(out, GroupQueue{Name: k.(string), Queue: v.(*OrderedJobQueue)})
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Remove drops a still-queued job from its group.
func (g *GroupPriorityQueue) Remove(group, jobID string) bool {
	q, ok := g.Group(group)
	if !ok {
		return false
	}
	if !q.Remove(jobID) {
		return false
	}
	g.stat.Counter(stats.QueueRemovedCounter).Inc(1)
	return true
}

// Size sums the advisory sizes of all groups.
func (g *GroupPriorityQueue) Size() int {
	n := 0
	for _, gq := range g.Snapshot() {
		n += gq.Queue.Size()
	}
	return n
}

// Wait returns a channel closed by the next Add. Grab it before inspecting
// the queues so an Add in between is not missed.
func (g *GroupPriorityQueue) Wait() <-chan struct{} {
	g.wakeMu.Lock()
	defer g.wakeMu.Unlock()
	return g.wake
}
