package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const dateLayout = "2006-01-02"

type Books struct {
	db *DB
}

func NewBooks(db *DB) *Books {
	return &Books{db: db}
}

const bookColumns = `id, user_id, title, author, genre, description, rating, favorite_quotes, start_date, end_date, status`

func (b *Books) Create(ctx context.Context, book *Book) error {
	err := b.db.QueryRowContext(ctx, b.db.rebind(`
		INSERT INTO books (user_id, title, author, genre, description, rating, favorite_quotes, start_date, end_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`), book.UserID, book.Title, book.Author, book.Genre, book.Description, book.Rating,
		book.FavoriteQuotes, formatDate(book.StartDate), formatDate(book.EndDate), string(book.Status)).Scan(&book.ID)
	if err != nil {
		return fmt.Errorf("insert book: %w", err)
	}
	return nil
}

func (b *Books) Get(ctx context.Context, id int64) (*Book, error) {
	rows, err := b.db.QueryContext(ctx, b.db.rebind(`SELECT `+bookColumns+` FROM books WHERE id = ?`), id)
	if err != nil {
		return nil, fmt.Errorf("select book: %w", err)
	}
	books, err := scanBooks(rows)
	if err != nil {
		return nil, err
	}
	if len(books) == 0 {
		return nil, ErrNotFound
	}
	return &books[0], nil
}

func (b *Books) ListByUser(ctx context.Context, userID int64) ([]Book, error) {
	rows, err := b.db.QueryContext(ctx, b.db.rebind(`SELECT `+bookColumns+` FROM books WHERE user_id = ? ORDER BY id`), userID)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return scanBooks(rows)
}

func (b *Books) ListAll(ctx context.Context) ([]Book, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT `+bookColumns+` FROM books ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	return scanBooks(rows)
}

// Update overwrites every column of an existing book owned by book.UserID.
func (b *Books) Update(ctx context.Context, book *Book) error {
	res, err := b.db.ExecContext(ctx, b.db.rebind(`
		UPDATE books SET title = ?, author = ?, genre = ?, description = ?, rating = ?,
			favorite_quotes = ?, start_date = ?, end_date = ?, status = ?
		WHERE id = ? AND user_id = ?
	`), book.Title, book.Author, book.Genre, book.Description, book.Rating, book.FavoriteQuotes,
		formatDate(book.StartDate), formatDate(book.EndDate), string(book.Status), book.ID, book.UserID)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return expectOneRow(res)
}

func (b *Books) Delete(ctx context.Context, id, userID int64) error {
	res, err := b.db.ExecContext(ctx, b.db.rebind(`DELETE FROM books WHERE id = ? AND user_id = ?`), id, userID)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return expectOneRow(res)
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanBooks(rows *sql.Rows) ([]Book, error) {
	defer rows.Close()

	var books []Book
	for rows.Next() {
		var (
			book        Book
			description sql.NullString
			rating      sql.NullInt64
			quotes      sql.NullString
			start, end  sql.NullString
			status      string
		)
		if err := rows.Scan(&book.ID, &book.UserID, &book.Title, &book.Author, &book.Genre,
			&description, &rating, &quotes, &start, &end, &status); err != nil {
			return nil, fmt.Errorf("scan book: %w", err)
		}
		if description.Valid {
			book.Description = &description.String
		}
		if rating.Valid {
			r := int(rating.Int64)
			book.Rating = &r
		}
		if quotes.Valid {
			book.FavoriteQuotes = &quotes.String
		}
		var err error
		if book.StartDate, err = parseDate(start); err != nil {
			return nil, err
		}
		if book.EndDate, err = parseDate(end); err != nil {
			return nil, err
		}
		book.Status = BookStatus(status)
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate books: %w", err)
	}
	return books, nil
}

func formatDate(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.Format(dateLayout)
}

func parseDate(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse stored date %q: %w", s.String, err)
	}
	return &t, nil
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
