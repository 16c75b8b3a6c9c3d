package helpers

import (
	"strings"
	"sync"

	"github.com/juju/errors"
)

// FoldErrors joins non-nil errors into one, nil if there are none.
func FoldErrors(errs ...error) error {
	ss := make([]string, 0, len(errs))
	for _, e := range errs {
		if e != nil {
			ss = append(ss, e.Error())
		}
	}
	if len(ss) == 0 {
		return nil
	}
	return errors.New(strings.Join(ss, "\n"))
}

// FirstError keeps the first non-nil error stored.
type FirstError struct {
	mu  sync.Mutex
	err error
}

func (f *FirstError) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}

// Store returns true if e became the first error.
func (f *FirstError) Store(e error) bool {
	if e == nil {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false
	}
	f.err = e
	return true
}
