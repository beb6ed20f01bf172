package vfile

import "sync"

// Set is an ordered collection of virtual files keyed by path.
// Files are cloned on insertion so later changes by the producer are not observed.
type Set struct {
	mu    sync.RWMutex
	order []string
	files map[string]*File
}

func NewSet(files ...*File) *Set {
	s := &Set{files: make(map[string]*File)}
	for _, f := range files {
		s.Add(f)
	}

	return s
}

// Add stores a clone of f. A file with a known path replaces the previous clone
// and keeps its original position.
func (s *Set) Add(f *File) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.files[f.Path]; !ok {
		s.order = append(s.order, f.Path)
	}

	s.files[f.Path] = f.Clone()
}

func (s *Set) Get(path string) (*File, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, ok := s.files[path]
	return f, ok
}

func (s *Set) Has(path string) bool {
	_, ok := s.Get(path)
	return ok
}

func (s *Set) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.order)
}

// Files returns the stored files in insertion order
func (s *Set) Files() []*File {
	s.mu.RLock()
	defer s.mu.RUnlock()

	files := make([]*File, 0, len(s.order))
	for _, p := range s.order {
		files = append(files, s.files[p])
	}

	return files
}

func (s *Set) Paths() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]string(nil), s.order...)
}

// Reset empties the set in place
func (s *Set) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = nil
	s.files = make(map[string]*File)
}
