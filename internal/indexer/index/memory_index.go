package index

import (
	"sort"
	"sync"
)

// MemoryIndex maps terms to posting lists. A single RWMutex guards the
// whole map so concurrent readers never observe a posting list mid-append.
// Each indexed document keeps the sequence number of its first insertion.
type MemoryIndex struct {
	mu       sync.RWMutex
	index    map[string]PostingList
	docs     map[int64]uint64
	nextSeq  uint64
	postings int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index: make(map[string]PostingList),
		docs:  make(map[int64]uint64),
	}
}

// AddDocument appends docID to the posting list of every term. Repeated
// terms and repeated calls for the same document produce duplicate postings.
func (m *MemoryIndex) AddDocument(docID int64, terms []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.add(docID, terms)
}

// Replace swaps the terms of docID in one step, so readers see either the
// old terms or the new ones. The document keeps its insertion sequence.
func (m *MemoryIndex) Replace(docID int64, terms []string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	seq, existed := m.docs[docID]
	removed := m.remove(docID)
	m.add(docID, terms)
	if existed {
		m.docs[docID] = seq
	}
	return removed
}

// Sequence reports the insertion order of docID.
func (m *MemoryIndex) Sequence(docID int64) (uint64, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seq, ok := m.docs[docID]
	return seq, ok
}

func (m *MemoryIndex) add(docID int64, terms []string) {
	for _, term := range terms {
		m.index[term] = append(m.index[term], docID)
		m.postings++
	}
	if _, ok := m.docs[docID]; !ok {
		m.docs[docID] = m.nextSeq
		m.nextSeq++
	}
}

// Postings returns the set of documents recorded for term. The returned map
// is owned by the caller.
func (m *MemoryIndex) Postings(term string) map[int64]struct{} {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.index[term]
	set := make(map[int64]struct{}, len(list))
	for _, id := range list {
		set[id] = struct{}{}
	}
	return set
}

// Optimize removes duplicate postings from every list and returns the number
// of postings dropped. Order within a list is not preserved.
func (m *MemoryIndex) Optimize() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for term, list := range m.index {
		seen := make(map[int64]struct{}, len(list))
		deduped := make(PostingList, 0, len(list))
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			deduped = append(deduped, id)
		}
		removed += len(list) - len(deduped)
		m.index[term] = deduped
	}
	m.postings -= removed
	return removed
}

// Remove drops docID from every posting list and deletes terms left empty.
// It returns the number of postings removed.
func (m *MemoryIndex) Remove(docID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.remove(docID)
}

func (m *MemoryIndex) remove(docID int64) int {
	delete(m.docs, docID)
	removed := 0
	for term, list := range m.index {
		kept := list[:0]
		for _, id := range list {
			if id == docID {
				removed++
				continue
			}
			kept = append(kept, id)
		}
		if len(kept) == 0 {
			delete(m.index, term)
			continue
		}
		m.index[term] = kept
	}
	m.postings -= removed
	return removed
}

// Stats reports term and posting counts. An empty index yields zeros.
func (m *MemoryIndex) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		IndexSize:     len(m.index),
		TotalWords:    len(m.index),
		TotalPostings: m.postings,
		DocsIndexed:   len(m.docs),
	}
	if len(m.index) > 0 {
		stats.AveragePostsPerWord = float64(m.postings) / float64(len(m.index))
	}
	return stats
}

// Snapshot copies the index into a term-sorted slice.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := make([]TermEntry, 0, len(m.index))
	for term, list := range m.index {
		postings := make(PostingList, len(list))
		copy(postings, list)
		entries = append(entries, TermEntry{
			Term:     term,
			Postings: postings,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// DocCount is the number of distinct documents currently indexed.
func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}
