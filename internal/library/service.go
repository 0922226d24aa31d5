package library

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JeanneIrsaeva/library-tracker/internal/store"
)

var (
	ErrNotFound  = errors.New("book not found")
	ErrForbidden = errors.New("book belongs to another user")
)

// ValidationError describes a rejected field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

type BookRepository interface {
	Create(ctx context.Context, book *store.Book) error
	Get(ctx context.Context, id int64) (*store.Book, error)
	ListByUser(ctx context.Context, userID int64) ([]store.Book, error)
	ListAll(ctx context.Context) ([]store.Book, error)
	Update(ctx context.Context, book *store.Book) error
	Delete(ctx context.Context, id, userID int64) error
}

// BookInput carries a full book payload on create.
type BookInput struct {
	Title          string
	Author         string
	Genre          string
	Description    *string
	Rating         *int
	FavoriteQuotes *string
	StartDate      *time.Time
	EndDate        *time.Time
	Status         string
}

// BookPatch carries only the fields the caller set.
type BookPatch struct {
	Title          *string
	Author         *string
	Genre          *string
	Description    *string
	Rating         *int
	FavoriteQuotes *string
	StartDate      *time.Time
	EndDate        *time.Time
	Status         *string
}

type Service struct {
	books  BookRepository
	logger *slog.Logger
}

func NewService(books BookRepository, logger *slog.Logger) *Service {
	return &Service{books: books, logger: logger.With(slog.String("component", "library"))}
}

func (s *Service) List(ctx context.Context, userID int64) ([]store.Book, error) {
	return s.books.ListByUser(ctx, userID)
}

func (s *Service) ListAll(ctx context.Context) ([]store.Book, error) {
	return s.books.ListAll(ctx)
}

// Get returns a book only to its owner.
func (s *Service) Get(ctx context.Context, id, userID int64) (*store.Book, error) {
	book, err := s.books.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if book.UserID != userID {
		return nil, ErrForbidden
	}
	return book, nil
}

func (s *Service) Create(ctx context.Context, userID int64, in BookInput) (*store.Book, error) {
	status := in.Status
	if status == "" {
		status = string(store.StatusPlanned)
	}
	book := &store.Book{
		UserID:         userID,
		Title:          strings.TrimSpace(in.Title),
		Author:         strings.TrimSpace(in.Author),
		Genre:          strings.TrimSpace(in.Genre),
		Description:    in.Description,
		Rating:         normalizeRating(in.Rating),
		FavoriteQuotes: in.FavoriteQuotes,
		StartDate:      in.StartDate,
		EndDate:        in.EndDate,
		Status:         store.BookStatus(status),
	}
	if err := validate(book); err != nil {
		return nil, err
	}
	if err := s.books.Create(ctx, book); err != nil {
		return nil, err
	}
	s.logger.Debug("Book created", slog.Int64("bookID", book.ID), slog.Int64("userID", userID))
	return book, nil
}

// Update applies a partial update to a book owned by userID.
func (s *Service) Update(ctx context.Context, id, userID int64, p BookPatch) (*store.Book, error) {
	book, err := s.books.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if book.UserID != userID {
		// not distinguishable from a missing book for the caller
		return nil, ErrNotFound
	}

	if p.Title != nil {
		book.Title = strings.TrimSpace(*p.Title)
	}
	if p.Author != nil {
		book.Author = strings.TrimSpace(*p.Author)
	}
	if p.Genre != nil {
		book.Genre = strings.TrimSpace(*p.Genre)
	}
	if p.Description != nil {
		book.Description = p.Description
	}
	if p.Rating != nil {
		book.Rating = normalizeRating(p.Rating)
	}
	if p.FavoriteQuotes != nil {
		book.FavoriteQuotes = p.FavoriteQuotes
	}
	if p.StartDate != nil {
		book.StartDate = p.StartDate
	}
	if p.EndDate != nil {
		book.EndDate = p.EndDate
	}
	if p.Status != nil {
		book.Status = store.BookStatus(*p.Status)
	}
	if err := validate(book); err != nil {
		return nil, err
	}
	if err := s.books.Update(ctx, book); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return book, nil
}

func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	if err := s.books.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrNotFound
		}
		return err
	}
	return nil
}

// a zero rating means "not rated".
func normalizeRating(r *int) *int {
	if r == nil || *r == 0 {
		return nil
	}
	return r
}

func validate(b *store.Book) error {
	if err := checkLength("title", b.Title, 200); err != nil {
		return err
	}
	if err := checkLength("author", b.Author, 100); err != nil {
		return err
	}
	if err := checkLength("genre", b.Genre, 50); err != nil {
		return err
	}
	if b.Rating != nil && (*b.Rating < 1 || *b.Rating > 5) {
		return &ValidationError{Field: "rating", Message: "must be between 1 and 5"}
	}
	if !b.Status.Valid() {
		return &ValidationError{Field: "status", Message: "must be one of READING, PLANNED, READ"}
	}
	if b.StartDate != nil && b.EndDate != nil && b.EndDate.Before(*b.StartDate) {
		return &ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}
	return nil
}

func checkLength(field, v string, max int) error {
	n := utf8.RuneCountInString(v)
	if n == 0 {
		return &ValidationError{Field: field, Message: "is required"}
	}
	if n > max {
		return &ValidationError{Field: field, Message: fmt.Sprintf("must be at most %d characters", max)}
	}
	return nil
}
