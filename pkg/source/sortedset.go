package source

import "github.com/emirpasic/gods/trees/redblacktree"

// nameSet stores the registered source names in memory in a way that also
// provides fast sorted access. It is not safe for concurrent use; the
// registry serializes access to it.
type nameSet struct {
	inner *redblacktree.Tree
}

func newNameSet() *nameSet {
	return &nameSet{
		inner: redblacktree.NewWithStringComparator(),
	}
}

func (s *nameSet) Add(name string) {
	s.inner.Put(name, nil)
}

func (s *nameSet) Remove(name string) {
	s.inner.Remove(name)
}

func (s *nameSet) Exists(name string) bool {
	_, ok := s.inner.Get(name)
	return ok
}

func (s *nameSet) Size() int {
	return s.inner.Size()
}

func (s *nameSet) Values() []string {
	values := make([]string, 0, s.inner.Size())
	for _, k := range s.inner.Keys() {
		values = append(values, k.(string))
	}
	return values
}
