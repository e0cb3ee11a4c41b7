package types

import "time"

// Borrowing is a loan of one book to a card holder. A borrowing is open
// while ReturnDate is nil; Close moves it to returned and there is no way
// back.
type Borrowing struct {
	ID        int64
	Card      int64
	IsTeacher bool
	Librarian int64
	Book      int64

	StatusStart  string
	StatusFinish *string

	BorrowDate         string
	ReturnDate         *string
	RequiredReturnDate *string // student loans only
}

// Table returns the table the borrowing is stored in.
func (b Borrowing) Table() string {
	if b.IsTeacher {
		return TableTeachersBorrowing
	}
	return TableStudentsBorrowing
}

// Open reports whether the book has not been returned yet.
func (b Borrowing) Open() bool {
	return b.ReturnDate == nil
}

// Close records the return of the book with its finishing condition.
// Returns ErrLoanClosed if the borrowing is already returned.
func (b *Borrowing) Close(finish string, today time.Time) error {
	if !b.Open() {
		return ErrLoanClosed
	}
	if !ValidCondition(finish) {
		return ErrInvalidCondition
	}
	returned := today.Format(DateLayout)
	b.StatusFinish = &finish
	b.ReturnDate = &returned
	return nil
}

// Record returns the full row sent to the backend. The card column and the
// required return date depend on the owner kind.
func (b Borrowing) Record() Record {
	rec := Record{
		"id":                 b.ID,
		"librarian":          b.Librarian,
		"book":               b.Book,
		"book_status_start":  b.StatusStart,
		"book_status_finish": optional(b.StatusFinish),
		"borrow_date":        b.BorrowDate,
		"return_date":        optional(b.ReturnDate),
	}
	if b.IsTeacher {
		rec["teacher_card"] = b.Card
	} else {
		rec["student_card"] = b.Card
		rec["required_return_date"] = optional(b.RequiredReturnDate)
	}
	return rec
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// BorrowingView is the enriched read-only borrowing row served by
// GET /borrowing-readonly/{isTeacher}/{card}.
type BorrowingView struct {
	ID                 int64   `json:"id"`
	Owner              string  `json:"owner"`
	Card               int64   `json:"card"`
	LibrarianName      string  `json:"librarian_name"`
	Librarian          int64   `json:"librarian"`
	BookTitle          string  `json:"book_title"`
	Book               int64   `json:"book"`
	StatusStart        string  `json:"book_status_start"`
	StatusFinish       *string `json:"book_status_finish"`
	BorrowDate         string  `json:"borrow_date"`
	ReturnDate         *string `json:"return_date"`
	RequiredReturnDate *string `json:"required_return_date"`
}

// Open reports whether the viewed borrowing is still open.
func (v BorrowingView) Open() bool {
	return v.ReturnDate == nil
}

// Borrowing rebuilds the editable record behind the view.
func (v BorrowingView) Borrowing(isTeacher bool) Borrowing {
	b := Borrowing{
		ID:           v.ID,
		Card:         v.Card,
		IsTeacher:    isTeacher,
		Librarian:    v.Librarian,
		Book:         v.Book,
		StatusStart:  v.StatusStart,
		StatusFinish: v.StatusFinish,
		BorrowDate:   v.BorrowDate,
		ReturnDate:   v.ReturnDate,
	}
	if !isTeacher {
		b.RequiredReturnDate = v.RequiredReturnDate
	}
	return b
}

// Librarian is an entry of the librarian picker.
type Librarian struct {
	ID       int64  `json:"id"`
	Name     string `json:"name"`
	Lastname string `json:"lastname"`
	Surname  string `json:"surname"`
	Age      int64  `json:"age"`
}

// DisplayName returns "lastname name surname", the picker label.
func (l Librarian) DisplayName() string {
	return l.Lastname + " " + l.Name + " " + l.Surname
}
