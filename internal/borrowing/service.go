// Package borrowing implements checking books out to student and teacher
// cards and taking them back.
package borrowing

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mesh-intelligence/libpanel/pkg/types"
)

// Backend is the backend surface the borrowing workflow needs.
type Backend interface {
	Create(ctx context.Context, table string, rec types.Record) (types.Record, error)
	Update(ctx context.Context, table string, key any, rec types.Record) (types.Record, error)
	ListBorrowings(ctx context.Context, isTeacher bool, card int64) ([]types.BorrowingView, error)
}

// Request describes a new loan.
type Request struct {
	Card      int64
	Book      int64
	Librarian int64
	IsTeacher bool

	// Condition is the starting grade; empty means Excellent.
	Condition string

	// Due is the required return date of a student loan; empty means today.
	// Teacher loans must leave it empty.
	Due string
}

// Service creates, returns and lists borrowings.
type Service struct {
	backend Backend
	logger  *zap.Logger
	now     func() time.Time
}

// NewService creates a Service. A nil logger discards logs; a nil clock uses
// time.Now.
func NewService(backend Backend, logger *zap.Logger, now func() time.Time) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if now == nil {
		now = time.Now
	}
	return &Service{backend: backend, logger: logger, now: now}
}

// Validate checks a request and fills its defaults.
func (r *Request) Validate(today time.Time) error {
	if r.Card <= 0 || r.Book <= 0 || r.Librarian <= 0 {
		return types.ErrInvalidReference
	}
	if r.Condition == "" {
		r.Condition = types.ConditionExcellent
	}
	if !types.ValidCondition(r.Condition) {
		return fmt.Errorf("%w: %q", types.ErrInvalidCondition, r.Condition)
	}
	if r.IsTeacher {
		if r.Due != "" {
			return types.ErrReturnDateForbidden
		}
		return nil
	}
	if r.Due == "" {
		r.Due = today.Format(types.DateLayout)
	}
	if _, err := time.Parse(types.DateLayout, r.Due); err != nil {
		return fmt.Errorf("%w: due date %q", types.ErrInvalidValue, r.Due)
	}
	return nil
}

// Create opens a loan dated today. Book availability is left to the
// backend.
func (s *Service) Create(ctx context.Context, req Request) (types.Borrowing, error) {
	today := s.now()
	if err := req.Validate(today); err != nil {
		return types.Borrowing{}, err
	}

	b := types.Borrowing{
		Card:        req.Card,
		IsTeacher:   req.IsTeacher,
		Librarian:   req.Librarian,
		Book:        req.Book,
		StatusStart: req.Condition,
		BorrowDate:  today.Format(types.DateLayout),
	}
	if !req.IsTeacher {
		due := req.Due
		b.RequiredReturnDate = &due
	}

	resp, err := s.backend.Create(ctx, b.Table(), b.Record())
	if err != nil {
		return types.Borrowing{}, fmt.Errorf("create borrowing: %w", err)
	}
	created, err := fromRecord(resp, req.IsTeacher)
	if err != nil {
		return types.Borrowing{}, fmt.Errorf("create borrowing: %w", err)
	}
	s.logger.Info("Borrowing opened",
		zap.Int64("id", created.ID),
		zap.Int64("card", created.Card),
		zap.Int64("book", created.Book),
		zap.Bool("teacher", created.IsTeacher),
	)
	return created, nil
}

// Return closes an open loan with the finishing grade and submits the full
// record. Returns ErrLoanClosed for a loan already returned.
func (s *Service) Return(ctx context.Context, view types.BorrowingView, isTeacher bool, finish string) (types.Borrowing, error) {
	b := view.Borrowing(isTeacher)
	if err := b.Close(finish, s.now()); err != nil {
		return types.Borrowing{}, fmt.Errorf("return borrowing %d: %w", view.ID, err)
	}

	resp, err := s.backend.Update(ctx, b.Table(), b.ID, b.Record())
	if err != nil {
		return types.Borrowing{}, fmt.Errorf("return borrowing %d: %w", view.ID, err)
	}
	closed, err := fromRecord(resp, isTeacher)
	if err != nil {
		return types.Borrowing{}, fmt.Errorf("return borrowing %d: %w", view.ID, err)
	}
	s.logger.Info("Borrowing returned",
		zap.Int64("id", closed.ID),
		zap.String("condition", finish),
	)
	return closed, nil
}

// List returns the enriched borrowings of one card.
func (s *Service) List(ctx context.Context, card int64, isTeacher bool) ([]types.BorrowingView, error) {
	views, err := s.backend.ListBorrowings(ctx, isTeacher, card)
	if err != nil {
		return nil, fmt.Errorf("list borrowings of card %d: %w", card, err)
	}
	return views, nil
}

// Find returns one borrowing of a card by id.
func (s *Service) Find(ctx context.Context, card int64, isTeacher bool, id int64) (types.BorrowingView, error) {
	views, err := s.List(ctx, card, isTeacher)
	if err != nil {
		return types.BorrowingView{}, err
	}
	for _, v := range views {
		if v.ID == id {
			return v, nil
		}
	}
	return types.BorrowingView{}, fmt.Errorf("%w: borrowing %d of card %d", types.ErrRowNotFound, id, card)
}

// ReturnOffered reports whether the return action applies to a borrowing.
func ReturnOffered(v types.BorrowingView) bool {
	return v.Open()
}

func fromRecord(rec types.Record, isTeacher bool) (types.Borrowing, error) {
	cardField := "student_card"
	if isTeacher {
		cardField = "teacher_card"
	}
	b := types.Borrowing{IsTeacher: isTeacher}
	var ok bool
	if b.ID, ok = rec["id"].(int64); !ok {
		return b, fmt.Errorf("%w: borrowing has no id", types.ErrInvalidRow)
	}
	b.Card, _ = rec[cardField].(int64)
	b.Librarian, _ = rec["librarian"].(int64)
	b.Book, _ = rec["book"].(int64)
	b.StatusStart, _ = rec["book_status_start"].(string)
	b.StatusFinish = optionalString(rec["book_status_finish"])
	b.BorrowDate, _ = rec["borrow_date"].(string)
	b.ReturnDate = optionalString(rec["return_date"])
	if !isTeacher {
		b.RequiredReturnDate = optionalString(rec["required_return_date"])
	}
	return b, nil
}

func optionalString(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	return &s
}
