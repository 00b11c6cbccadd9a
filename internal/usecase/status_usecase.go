package usecase

import (
	"sync"
	"time"

	"github.com/jaennil/guide_helper/backend/imagery/internal/pyramid"
	"github.com/jaennil/guide_helper/backend/imagery/pkg/logger"
)

const maxReportedErrors = 50

type ReportedError struct {
	ID      int       `json:"id"`
	Title   string    `json:"title"`
	Message string    `json:"message"`
	Count   int       `json:"count"`
	Time    time.Time `json:"time"`
}

// StatusUseCase collects fetch progress and terminal fetch errors for the
// layer. Repeats of the latest error are folded into its count.
type StatusUseCase struct {
	mu       sync.Mutex
	inFlight int
	errors   []ReportedError
	nextID   int
	logger   logger.Logger
	now      func() time.Time
}

var (
	_ pyramid.Progress      = (*StatusUseCase)(nil)
	_ pyramid.ErrorReporter = (*StatusUseCase)(nil)
)

func NewStatusUseCase(l logger.Logger) *StatusUseCase {
	return &StatusUseCase{
		logger: l,
		now:    time.Now,
	}
}

func (uc *StatusUseCase) Increment() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.inFlight++
}

func (uc *StatusUseCase) Decrement() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if uc.inFlight == 0 {
		uc.logger.Warn("progress decremented below zero")
		return
	}
	uc.inFlight--
}

func (uc *StatusUseCase) InFlight() int {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	return uc.inFlight
}

func (uc *StatusUseCase) ReportError(title string, err error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	msg := err.Error()
	if n := len(uc.errors); n > 0 && uc.errors[n-1].Title == title && uc.errors[n-1].Message == msg {
		uc.errors[n-1].Count++
		uc.errors[n-1].Time = uc.now()
		return
	}

	uc.nextID++
	uc.errors = append(uc.errors, ReportedError{
		ID:      uc.nextID,
		Title:   title,
		Message: msg,
		Count:   1,
		Time:    uc.now(),
	})
	if len(uc.errors) > maxReportedErrors {
		uc.errors = uc.errors[len(uc.errors)-maxReportedErrors:]
	}
}

// Errors returns the reported errors, oldest first.
func (uc *StatusUseCase) Errors() []ReportedError {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	out := make([]ReportedError, len(uc.errors))
	copy(out, uc.errors)
	return out
}

// DismissError removes one error and reports whether it existed.
func (uc *StatusUseCase) DismissError(id int) bool {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	for i, e := range uc.errors {
		if e.ID == id {
			uc.errors = append(uc.errors[:i], uc.errors[i+1:]...)
			return true
		}
	}
	return false
}

func (uc *StatusUseCase) ClearErrors() {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	uc.errors = nil
}
