package store

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"time"

	"github.com/dperrin/gather/internal/model"
)

const (
	codeLifetime = 15 * time.Minute
	maxAttempts  = 5
)

type SigninCodeStore struct {
	db *sql.DB
}

func NewSigninCodeStore(db *sql.DB) *SigninCodeStore {
	return &SigninCodeStore{db: db}
}

func scanSigninCode(scanner interface{ Scan(...any) error }) (*model.SigninCode, error) {
	var sc model.SigninCode
	var usedAt sql.NullTime
	err := scanner.Scan(
		&sc.ID, &sc.Code, &sc.Email, &sc.Purpose,
		&sc.ExpiresAt, &usedAt, &sc.Attempts, &sc.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		sc.UsedAt = &usedAt.Time
	}
	return &sc, nil
}

const signinCodeCols = `id, code, email, purpose, expires_at, used_at, attempts, created_at`

// generateCode returns a 6-digit numeric code (100000–999999).
func generateCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}

// Create issues a fresh code for the email, invalidating any pending ones.
func (s *SigninCodeStore) Create(email, purpose string) (*model.SigninCode, error) {
	_, err := s.db.Exec(
		`UPDATE signin_codes SET used_at = datetime('now') WHERE email = ? AND used_at IS NULL AND expires_at > datetime('now')`,
		email,
	)
	if err != nil {
		return nil, fmt.Errorf("invalidate previous codes: %w", err)
	}

	code, err := generateCode()
	if err != nil {
		return nil, err
	}
	expiresAt := time.Now().UTC().Add(codeLifetime)

	result, err := s.db.Exec(
		`INSERT INTO signin_codes (code, email, purpose, expires_at) VALUES (?, ?, ?, ?)`,
		code, email, purpose, expiresAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert signin code: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	row := s.db.QueryRow(`SELECT `+signinCodeCols+` FROM signin_codes WHERE id = ?`, id)
	return scanSigninCode(row)
}

// Verify consumes a pending code for the email. A wrong code increments the
// attempt counter; codes past maxAttempts are dead even if later guessed.
func (s *SigninCodeStore) Verify(email, code string) (*model.SigninCode, error) {
	row := s.db.QueryRow(
		`SELECT `+signinCodeCols+` FROM signin_codes
		 WHERE email = ? AND used_at IS NULL AND expires_at > datetime('now')
		 ORDER BY created_at DESC LIMIT 1`,
		email,
	)
	sc, err := scanSigninCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get pending code: %w", err)
	}

	if sc.Attempts >= maxAttempts {
		return nil, nil
	}

	if sc.Code != code {
		_, err := s.db.Exec(`UPDATE signin_codes SET attempts = attempts + 1 WHERE id = ?`, sc.ID)
		if err != nil {
			return nil, fmt.Errorf("bump attempts: %w", err)
		}
		return nil, nil
	}

	_, err = s.db.Exec(`UPDATE signin_codes SET used_at = datetime('now') WHERE id = ?`, sc.ID)
	if err != nil {
		return nil, fmt.Errorf("mark code used: %w", err)
	}
	return sc, nil
}

// DeleteExpired removes stale codes and returns the number deleted.
func (s *SigninCodeStore) DeleteExpired() (int64, error) {
	result, err := s.db.Exec(`DELETE FROM signin_codes WHERE expires_at <= datetime('now')`)
	if err != nil {
		return 0, fmt.Errorf("delete expired codes: %w", err)
	}
	return result.RowsAffected()
}
