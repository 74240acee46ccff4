// Package tracking accumulates probe findings into one deduplicated record per
// target range.
package tracking

import (
	"errors"
	"fmt"
	"net/netip"
	"sort"
	"sync"

	"github.com/projectdiscovery/pd-discovery/pkg/netrange"
	mapsutil "github.com/projectdiscovery/utils/maps"
)

var (
	ErrUnknownRange = errors.New("range not opened")
	ErrEmptyHost    = errors.New("empty host")
)

// Store owns every range record of a run. It is safe for concurrent use.
type Store struct {
	records *mapsutil.SyncLockMap[string, *Record]

	mu    sync.Mutex
	order []string
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		records: mapsutil.NewSyncLockMap[string, *Record](),
	}
}

// Open creates the record for a range, or returns the existing one
func (s *Store) Open(rangeID string, class netrange.SizeClass) *Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	if record, ok := s.records.Get(rangeID); ok {
		return record
	}

	record := newRecord(rangeID, class)
	_ = s.records.Set(rangeID, record)
	s.order = append(s.order, rangeID)
	return record
}

// Get returns the record of an opened range
func (s *Store) Get(rangeID string) (*Record, bool) {
	return s.records.Get(rangeID)
}

// Merge records labels against host in the given range
func (s *Store) Merge(rangeID, host string, labels ...string) error {
	record, ok := s.records.Get(rangeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRange, rangeID)
	}
	return record.Merge(host, labels...)
}

// MergeCount is Merge returning how many labels were newly recorded
func (s *Store) MergeCount(rangeID, host string, labels ...string) (int, error) {
	record, ok := s.records.Get(rangeID)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownRange, rangeID)
	}
	return record.MergeCount(host, labels...)
}

// Snapshot copies every record out in the order ranges were opened
func (s *Store) Snapshot() []RecordSnapshot {
	s.mu.Lock()
	order := append([]string(nil), s.order...)
	s.mu.Unlock()

	snapshots := make([]RecordSnapshot, 0, len(order))
	for _, id := range order {
		if record, ok := s.records.Get(id); ok {
			snapshots = append(snapshots, record.Snapshot())
		}
	}
	return snapshots
}

// Record is the inventory of one range
type Record struct {
	rangeID string
	class   netrange.SizeClass

	mu         sync.Mutex
	upHosts    int
	responsive map[string]*labelSet
}

func newRecord(rangeID string, class netrange.SizeClass) *Record {
	return &Record{
		rangeID:    rangeID,
		class:      class,
		responsive: make(map[string]*labelSet),
	}
}

// Merge adds host with labels if unseen, otherwise appends the labels it
// does not carry yet. Merging is idempotent and order independent.
func (r *Record) Merge(host string, labels ...string) error {
	_, err := r.MergeCount(host, labels...)
	return err
}

// MergeCount is Merge returning how many labels were newly recorded
func (r *Record) MergeCount(host string, labels ...string) (int, error) {
	if host == "" {
		return 0, ErrEmptyHost
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.responsive[host]
	if !ok {
		set = newLabelSet()
		r.responsive[host] = set
		r.upHosts++
	}
	return set.add(labels...), nil
}

// Range returns the identifier of the range
func (r *Record) Range() string {
	return r.rangeID
}

// Class returns the size class of the range
func (r *Record) Class() netrange.SizeClass {
	return r.class
}

// Count returns the number of distinct responsive hosts
func (r *Record) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.upHosts
}

// Hosts returns the responsive hosts in ascending order
func (r *Record) Hosts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedHosts()
}

// Labels returns the labels recorded for host in first-seen order
func (r *Record) Labels(host string) ([]string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	set, ok := r.responsive[host]
	if !ok {
		return nil, false
	}
	return set.list(), true
}

// Snapshot copies the record out
func (r *Record) Snapshot() RecordSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	responsive := make(map[string][]string, len(r.responsive))
	for host, set := range r.responsive {
		responsive[host] = set.list()
	}
	return RecordSnapshot{
		Range:       r.rangeID,
		Class:       r.class,
		UpHostCount: r.upHosts,
		Hosts:       r.sortedHosts(),
		Responsive:  responsive,
	}
}

// sortedHosts expects r.mu to be held
func (r *Record) sortedHosts() []string {
	hosts := make([]string, 0, len(r.responsive))
	for host := range r.responsive {
		hosts = append(hosts, host)
	}
	sortHosts(hosts)
	return hosts
}

// sortHosts orders addresses numerically, placing unparsable entries last
func sortHosts(hosts []string) {
	sort.SliceStable(hosts, func(i, j int) bool {
		a, errA := netip.ParseAddr(hosts[i])
		b, errB := netip.ParseAddr(hosts[j])
		switch {
		case errA == nil && errB == nil:
			return a.Less(b)
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return hosts[i] < hosts[j]
		}
	})
}

// RecordSnapshot is an immutable copy of a record
type RecordSnapshot struct {
	Range       string              `json:"range"`
	Class       netrange.SizeClass  `json:"net_class"`
	UpHostCount int                 `json:"uphost_count"`
	Hosts       []string            `json:"-"`
	Responsive  map[string][]string `json:"responsive"`
}

type labelSet struct {
	order []string
	seen  map[string]struct{}
}

func newLabelSet() *labelSet {
	return &labelSet{seen: make(map[string]struct{})}
}

func (l *labelSet) add(labels ...string) int {
	added := 0
	for _, label := range labels {
		if _, ok := l.seen[label]; ok {
			continue
		}
		l.seen[label] = struct{}{}
		l.order = append(l.order, label)
		added++
	}
	return added
}

func (l *labelSet) list() []string {
	return append(make([]string, 0, len(l.order)), l.order...)
}
