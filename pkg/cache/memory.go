package cache

import (
	"container/list"
)

// MemoryTier is the in-memory LRU tier. It is bounded by entry count and by
// approximate byte size; when either limit is exceeded the least recently
// used entries are evicted.
//
// MemoryTier is not safe for concurrent use; Store serializes access.
type MemoryTier struct {
	maxEntries int
	maxBytes   int64

	// ll holds *memoryItem, most recently used at the front.
	ll    *list.List
	items map[string]*list.Element
	bytes int64
}

type memoryItem struct {
	key   string
	entry *Entry
}

// NewMemoryTier creates a memory tier. A zero limit disables that bound.
func NewMemoryTier(maxEntries int, maxBytes int64) *MemoryTier {
	return &MemoryTier{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
}

// get returns the entry and marks it most recently used.
func (m *MemoryTier) get(key string) (*Entry, bool) {
	el, ok := m.items[key]
	if !ok {
		return nil, false
	}
	m.ll.MoveToFront(el)
	return el.Value.(*memoryItem).entry, true
}

// set inserts or replaces an entry and returns the number of evictions.
func (m *MemoryTier) set(key string, entry *Entry) int {
	if el, ok := m.items[key]; ok {
		item := el.Value.(*memoryItem)
		m.bytes += entry.size() - item.entry.size()
		item.entry = entry
		m.ll.MoveToFront(el)
	} else {
		m.items[key] = m.ll.PushFront(&memoryItem{key: key, entry: entry})
		m.bytes += entry.size()
	}
	return m.evict()
}

// delete removes an entry if present.
func (m *MemoryTier) delete(key string) {
	if el, ok := m.items[key]; ok {
		m.removeElement(el)
	}
}

func (m *MemoryTier) clear() {
	m.ll.Init()
	m.items = make(map[string]*list.Element)
	m.bytes = 0
}

func (m *MemoryTier) len() int {
	return m.ll.Len()
}

func (m *MemoryTier) size() int64 {
	return m.bytes
}

// evict drops least recently used entries until both limits hold.
func (m *MemoryTier) evict() int {
	evicted := 0
	for m.overLimit() {
		tail := m.ll.Back()
		if tail == nil {
			break
		}
		m.removeElement(tail)
		evicted++
	}
	return evicted
}

func (m *MemoryTier) overLimit() bool {
	if m.maxEntries > 0 && m.ll.Len() > m.maxEntries {
		return true
	}
	return m.maxBytes > 0 && m.bytes > m.maxBytes
}

func (m *MemoryTier) removeElement(el *list.Element) {
	item := m.ll.Remove(el).(*memoryItem)
	delete(m.items, item.key)
	m.bytes -= item.entry.size()
}
