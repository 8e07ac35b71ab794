package kvstore

import (
	"bytes"
	"context"
	"path"
	"sort"
	"strconv"
	"sync"
	"time"
)

// Memory is an in-process Store, suitable for tests and single-instance
// deployments. All operations are guarded by a single mutex; it is not
// intended for high-throughput production use (use Redis for that).
type Memory struct {
	mu      sync.Mutex
	values  map[string]entry
	zsets   map[string]map[string]float64
	sets    map[string]map[string]struct{}
	nowFunc func() time.Time
}

type entry struct {
	value   []byte
	expires time.Time // zero means no expiry
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values:  make(map[string]entry),
		zsets:   make(map[string]map[string]float64),
		sets:    make(map[string]map[string]struct{}),
		nowFunc: time.Now,
	}
}

func (m *Memory) now() time.Time {
	if m.nowFunc != nil {
		return m.nowFunc()
	}
	return time.Now()
}

// expired reports whether e has passed its TTL as of now. Must be called
// with m.mu held.
func (e entry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

func (m *Memory) getLocked(key string, now time.Time) ([]byte, bool) {
	e, ok := m.values[key]
	if !ok || e.expired(now) {
		if ok {
			delete(m.values, key)
		}
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.getLocked(key, m.now())
	return v, ok, nil
}

func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = m.newEntry(value, ttl)
	return nil
}

func (m *Memory) newEntry(value []byte, ttl time.Duration) entry {
	e := entry{value: value}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	return e
}

func (m *Memory) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	if _, ok := m.getLocked(key, now); ok {
		return false, nil
	}
	m.values[key] = m.newEntry(value, ttl)
	return true, nil
}

func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.getLocked(key, m.now())
	delete(m.values, key)
	return ok, nil
}

func (m *Memory) DeleteIfMatch(_ context.Context, key string, expected []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.getLocked(key, m.now())
	if !ok || !bytes.Equal(v, expected) {
		return false, nil
	}
	delete(m.values, key)
	return true, nil
}

func (m *Memory) Exists(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.getLocked(key, m.now())
	return ok, nil
}

func (m *Memory) Incr(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	v, ok := m.getLocked(key, now)
	var n int64
	if ok {
		n, _ = strconv.ParseInt(string(v), 10, 64)
	}
	n++
	e, existed := m.values[key]
	next := entry{value: []byte(strconv.FormatInt(n, 10))}
	if existed {
		next.expires = e.expires // preserve TTL across increments
	}
	m.values[key] = next
	return n, nil
}

func (m *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.getLocked(key, m.now())
	if !ok {
		return nil
	}
	m.values[key] = entry{value: e, expires: m.now().Add(ttl)}
	return nil
}

func (m *Memory) Keys(_ context.Context, pattern string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	var out []string
	for k, e := range m.values {
		if e.expired(now) {
			continue
		}
		if ok, _ := path.Match(pattern, k); ok {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) ZAdd(_ context.Context, key string, score float64, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.zsets[key]
	if !ok {
		set = make(map[string]float64)
		m.zsets[key] = set
	}
	set[member] = score
	return nil
}

func (m *Memory) zRangeLocked(key string, desc bool) []string {
	set := m.zsets[key]
	members := make([]string, 0, len(set))
	for k := range set {
		members = append(members, k)
	}
	sort.Slice(members, func(i, j int) bool {
		if set[members[i]] == set[members[j]] {
			if desc {
				return members[i] > members[j]
			}
			return members[i] < members[j]
		}
		if desc {
			return set[members[i]] > set[members[j]]
		}
		return set[members[i]] < set[members[j]]
	})
	return members
}

func sliceRange(members []string, start, stop int64) []string {
	n := int64(len(members))
	if n == 0 {
		return nil
	}
	if start < 0 {
		start = max64(n+start, 0)
	}
	if stop < 0 {
		stop = n + stop
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return nil
	}
	out := make([]string, stop-start+1)
	copy(out, members[start:stop+1])
	return out
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}

func (m *Memory) ZRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sliceRange(m.zRangeLocked(key, false), start, stop), nil
}

func (m *Memory) ZRevRange(_ context.Context, key string, start, stop int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return sliceRange(m.zRangeLocked(key, true), start, stop), nil
}

func (m *Memory) ZRangeByScore(_ context.Context, key string, min, max float64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, member := range m.zRangeLocked(key, false) {
		score := m.zsets[key][member]
		if score >= min && score <= max {
			out = append(out, member)
		}
	}
	return out, nil
}

func (m *Memory) ZRem(_ context.Context, key string, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.zsets[key], member)
	return nil
}

func (m *Memory) SAdd(_ context.Context, key string, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.sets[key]
	if !ok {
		set = make(map[string]struct{})
		m.sets[key] = set
	}
	set[member] = struct{}{}
	return nil
}

func (m *Memory) SRem(_ context.Context, key string, member string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sets[key], member)
	return nil
}

func (m *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := m.sets[key]
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (m *Memory) SCard(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.sets[key])), nil
}

var _ Store = (*Memory)(nil)
