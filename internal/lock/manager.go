package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager serializes mutating operations on named resources within a single
// process. Settings updates and index lifecycle changes for one index uid go
// through the same lock so readers never observe a half-applied definition.
type Manager struct {
	locks     sync.Map // resource -> *resourceLock
	waitQueue sync.Map // resource -> *sync.Map of waiter channels

	defaultTimeout time.Duration
	maxWaitTime    time.Duration

	mu    sync.RWMutex
	stats LockStats
}

type resourceLock struct {
	mu       sync.Mutex
	holder   string
	acquired time.Time
	timeout  time.Duration
}

// LockStats holds locking statistics.
type LockStats struct {
	ActiveLocks   int
	TotalAcquired uint64
	TotalReleased uint64
	TotalTimeouts uint64
}

// NewManager creates a new lock manager.
func NewManager(defaultTimeout, maxWaitTime time.Duration) *Manager {
	if defaultTimeout <= 0 {
		defaultTimeout = 30 * time.Second
	}
	if maxWaitTime <= 0 {
		maxWaitTime = 5 * time.Minute
	}

	return &Manager{
		defaultTimeout: defaultTimeout,
		maxWaitTime:    maxWaitTime,
	}
}

// Lock acquires a lock on the specified resource.
func (m *Manager) Lock(resource string) error {
	return m.LockWithTimeout(resource, m.defaultTimeout)
}

// LockWithTimeout acquires a lock with a specific hold timeout. A holder that
// never unlocks is force-released once the timeout elapses.
func (m *Manager) LockWithTimeout(resource string, timeout time.Duration) error {
	holderID := uuid.New().String()

	lockInterface, _ := m.locks.LoadOrStore(resource, &resourceLock{})
	resLock := lockInterface.(*resourceLock)

	acquired := make(chan bool, 1)
	go func() {
		resLock.mu.Lock()
		resLock.holder = holderID
		resLock.acquired = time.Now()
		resLock.timeout = timeout
		acquired <- true
	}()

	select {
	case <-acquired:
		m.recordAcquisition()
		go m.monitorTimeout(resource, holderID, timeout)
		return nil

	case <-time.After(m.maxWaitTime):
		return fmt.Errorf("failed to acquire lock on resource %s: timeout", resource)
	}
}

// TryLock attempts to acquire a lock without blocking.
func (m *Manager) TryLock(resource string, timeout time.Duration) error {
	holderID := uuid.New().String()

	lockInterface, _ := m.locks.LoadOrStore(resource, &resourceLock{})
	resLock := lockInterface.(*resourceLock)

	if !resLock.mu.TryLock() {
		return fmt.Errorf("resource %s is already locked", resource)
	}

	resLock.holder = holderID
	resLock.acquired = time.Now()
	resLock.timeout = timeout

	m.recordAcquisition()
	go m.monitorTimeout(resource, holderID, timeout)

	return nil
}

// Unlock releases a lock on the specified resource.
func (m *Manager) Unlock(resource string) error {
	lockInterface, ok := m.locks.Load(resource)
	if !ok {
		return fmt.Errorf("no lock found for resource %s", resource)
	}

	resLock := lockInterface.(*resourceLock)
	resLock.holder = ""
	resLock.mu.Unlock()

	m.recordRelease()
	m.notifyWaiters(resource)

	return nil
}

// IsLocked checks if a resource is currently locked.
func (m *Manager) IsLocked(resource string) bool {
	lockInterface, ok := m.locks.Load(resource)
	if !ok {
		return false
	}

	resLock := lockInterface.(*resourceLock)
	if resLock.mu.TryLock() {
		resLock.mu.Unlock()
		return false
	}
	return true
}

// WaitForUnlock waits for a resource to become unlocked.
func (m *Manager) WaitForUnlock(ctx context.Context, resource string) error {
	if !m.IsLocked(resource) {
		return nil
	}

	waitCh := make(chan struct{})

	queueInterface, _ := m.waitQueue.LoadOrStore(resource, &sync.Map{})
	queue := queueInterface.(*sync.Map)
	queueID := uuid.New().String()
	queue.Store(queueID, waitCh)

	defer queue.Delete(queueID)

	select {
	case <-waitCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) monitorTimeout(resource, holderID string, timeout time.Duration) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	<-timer.C

	lockInterface, ok := m.locks.Load(resource)
	if !ok {
		return
	}

	resLock := lockInterface.(*resourceLock)
	if resLock.holder == holderID {
		resLock.holder = ""
		resLock.mu.Unlock()

		m.recordTimeout()
		m.notifyWaiters(resource)
	}
}

func (m *Manager) notifyWaiters(resource string) {
	queueInterface, ok := m.waitQueue.Load(resource)
	if !ok {
		return
	}

	queue := queueInterface.(*sync.Map)
	queue.Range(func(key, value any) bool {
		close(value.(chan struct{}))
		return true
	})

	m.waitQueue.Delete(resource)
}

// GetStats returns current lock statistics.
func (m *Manager) GetStats() LockStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	activeLocks := 0
	m.locks.Range(func(key, value any) bool {
		resLock := value.(*resourceLock)
		if resLock.holder != "" {
			activeLocks++
		}
		return true
	})

	stats := m.stats
	stats.ActiveLocks = activeLocks

	return stats
}

func (m *Manager) recordAcquisition() {
	m.mu.Lock()
	m.stats.TotalAcquired++
	m.mu.Unlock()
}

func (m *Manager) recordRelease() {
	m.mu.Lock()
	m.stats.TotalReleased++
	m.mu.Unlock()
}

func (m *Manager) recordTimeout() {
	m.mu.Lock()
	m.stats.TotalTimeouts++
	m.mu.Unlock()
}

// LockGuard provides scoped locking with explicit release.
type LockGuard struct {
	manager  *Manager
	resource string
	locked   bool
}

// NewLockGuard acquires a lock and returns a guard for it.
func (m *Manager) NewLockGuard(resource string) (*LockGuard, error) {
	guard := &LockGuard{
		manager:  m,
		resource: resource,
	}

	if err := m.Lock(resource); err != nil {
		return nil, err
	}

	guard.locked = true
	return guard, nil
}

// Release releases the lock.
func (g *LockGuard) Release() error {
	if !g.locked {
		return fmt.Errorf("lock already released")
	}

	g.locked = false
	return g.manager.Unlock(g.resource)
}

// IndexLockManager provides per-index locking for definition changes.
type IndexLockManager struct {
	*Manager
}

// NewIndexLockManager creates a lock manager for index definition operations.
func NewIndexLockManager() *IndexLockManager {
	return &IndexLockManager{
		Manager: NewManager(30*time.Second, 5*time.Minute),
	}
}

// LockIndex locks an index definition for modification.
func (ilm *IndexLockManager) LockIndex(uid string) error {
	return ilm.Lock(indexResource(uid))
}

// UnlockIndex unlocks an index definition.
func (ilm *IndexLockManager) UnlockIndex(uid string) error {
	return ilm.Unlock(indexResource(uid))
}

// GuardIndex acquires a guard on an index definition.
func (ilm *IndexLockManager) GuardIndex(uid string) (*LockGuard, error) {
	return ilm.NewLockGuard(indexResource(uid))
}

func indexResource(uid string) string {
	return fmt.Sprintf("index:%s", uid)
}
