package storage

import (
	"context"
	"time"
)

// Encoding is one reference face encoding for a student. A student may have
// several reference images and therefore several encodings.
type Encoding struct {
	StudentID string
	Name      string
	Vector    []float32
	Dim       int
	CreatedAt time.Time
}

// EncodingRepository stores the reference encodings the gallery is built from.
// The gallery reads them once at startup; `classmark encode` writes them.
// DeleteEncodings drops every encoding a student has, so re-enrollment can
// replace a bad reference photo instead of piling encodings on top of it.
type EncodingRepository interface {
	SaveEncoding(ctx context.Context, enc Encoding) error
	LoadEncodings(ctx context.Context) ([]Encoding, error)
	CountEncodings(ctx context.Context) (int, error)
	DeleteEncodings(ctx context.Context, studentID string) error
}

// Teacher is an account that may open attendance sessions.
type Teacher struct {
	Username     string
	Name         string
	PasswordHash string // bcrypt
	CreatedAt    time.Time
}

// TeacherRepository stores teacher accounts. Get returns nil when the
// username is unknown.
type TeacherRepository interface {
	GetTeacher(ctx context.Context, username string) (*Teacher, error)
	SaveTeacher(ctx context.Context, t Teacher) error
}
