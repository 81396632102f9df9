package provisioning

import (
	"fmt"
	"sync"
)

// MockObserver records output for assertions in tests.
type MockObserver struct {
	mu       sync.Mutex
	Lines    []string
	Warnings []string
}

// NewMockObserver creates a new recording observer.
func NewMockObserver() *MockObserver {
	return &MockObserver{}
}

func (o *MockObserver) Printf(format string, v ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Lines = append(o.Lines, fmt.Sprintf(format, v...))
}

func (o *MockObserver) Warnf(format string, v ...any) {
	o.mu.Lock()
	defer o.mu.Unlock()
	line := fmt.Sprintf(format, v...)
	o.Lines = append(o.Lines, line)
	o.Warnings = append(o.Warnings, line)
}
