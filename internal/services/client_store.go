package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
	"github.com/AnshRaj112/journeygen-backend/pkg/utils"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// ClientStore keeps clients, their files and notes in PostgreSQL. Background
// and note bodies are encrypted when a cipher is configured.
type ClientStore struct {
	db     *sql.DB
	cipher *utils.FieldCipher
}

func NewClientStore(db *sql.DB, cipher *utils.FieldCipher) *ClientStore {
	return &ClientStore{db: db, cipher: cipher}
}

const clientColumns = `id, created_at, updated_at, first_name, last_name, email, gender,
	date_of_birth, background, is_active, COALESCE(password_hash, ''), COALESCE(invite_token, ''), invite_issued_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (s *ClientStore) scanClient(row rowScanner) (*models.Client, error) {
	var (
		c          models.Client
		id         uuid.UUID
		dob        sql.NullTime
		issued     sql.NullTime
		gender     string
		background string
	)
	err := row.Scan(&id, &c.CreatedAt, &c.UpdatedAt, &c.FirstName, &c.LastName, &c.Email, &gender,
		&dob, &background, &c.IsActive, &c.PasswordHash, &c.InviteToken, &issued)
	if err != nil {
		return nil, err
	}
	c.ID = id.String()
	c.Gender = models.Gender(gender)
	if dob.Valid {
		t := dob.Time
		c.DateOfBirth = &t
	}
	if issued.Valid {
		t := issued.Time
		c.InviteIssuedAt = &t
	}
	if c.Background, err = s.cipher.Decrypt(background); err != nil {
		return nil, fmt.Errorf("decrypt background: %w", err)
	}
	c.FileUploads = []models.ClientFile{}
	return &c, nil
}

func notFoundOr(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Newf(apperr.NotFound, "Client not found.")
	}
	return err
}

func conflictOr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return apperr.New(apperr.Conflict, "A client with this email already exists.", err)
	}
	return err
}

func parseClientID(id string) (uuid.UUID, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, apperr.New(apperr.Validation, "Invalid client ID.", err)
	}
	return parsed, nil
}

// CreateClient inserts the client and its initial files in one transaction.
func (s *ClientStore) CreateClient(ctx context.Context, c *models.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	background, err := s.cipher.Encrypt(c.Background)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	id := uuid.New()
	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO clients (id, created_at, updated_at, first_name, last_name, email, gender,
			date_of_birth, background, is_active, invite_token, invite_issued_at)
		VALUES ($1, $2, $2, $3, $4, $5, $6, $7, $8, $9, NULLIF($10, ''), $11)
	`, id, now, c.FirstName, c.LastName, c.Email, string(c.Gender),
		c.DateOfBirth, background, c.IsActive, c.InviteToken, c.InviteIssuedAt)
	if err != nil {
		return conflictOr(err)
	}

	for _, f := range c.FileUploads {
		if err := insertFile(ctx, tx, id, f); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}

	c.ID = id.String()
	c.CreatedAt, c.UpdatedAt = now, now
	if c.FileUploads == nil {
		c.FileUploads = []models.ClientFile{}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func insertFile(ctx context.Context, db execer, clientID uuid.UUID, f models.ClientFile) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO client_files (id, client_id, filename, path, mimetype, size)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), clientID, f.Filename, f.Path, f.Mimetype, f.Size)
	return err
}

// GetClient loads a client with files and notes.
func (s *ClientStore) GetClient(ctx context.Context, id string) (*models.Client, error) {
	parsed, err := parseClientID(id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c, err := s.scanClient(s.db.QueryRowContext(ctx, `SELECT `+clientColumns+` FROM clients WHERE id = $1`, parsed))
	if err != nil {
		return nil, notFoundOr(err)
	}
	if err := s.loadAttachments(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *ClientStore) FindClientByEmail(ctx context.Context, email string) (*models.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c, err := s.scanClient(s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE LOWER(email) = LOWER($1)`, strings.TrimSpace(email)))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return c, nil
}

func (s *ClientStore) FindClientByInviteToken(ctx context.Context, token string) (*models.Client, error) {
	if token == "" {
		return nil, apperr.Newf(apperr.NotFound, "Client not found.")
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	c, err := s.scanClient(s.db.QueryRowContext(ctx,
		`SELECT `+clientColumns+` FROM clients WHERE invite_token = $1`, token))
	if err != nil {
		return nil, notFoundOr(err)
	}
	return c, nil
}

// ListClients returns clients sorted by last then first name, with their files.
func (s *ClientStore) ListClients(ctx context.Context) ([]models.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `SELECT `+clientColumns+` FROM clients ORDER BY last_name, first_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	clients := []models.Client{}
	index := map[string]int{}
	for rows.Next() {
		c, err := s.scanClient(rows)
		if err != nil {
			return nil, err
		}
		index[c.ID] = len(clients)
		clients = append(clients, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	fileRows, err := s.db.QueryContext(ctx, `
		SELECT client_id, filename, path, mimetype, size FROM client_files ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer fileRows.Close()
	for fileRows.Next() {
		var (
			clientID uuid.UUID
			f        models.ClientFile
		)
		if err := fileRows.Scan(&clientID, &f.Filename, &f.Path, &f.Mimetype, &f.Size); err != nil {
			return nil, err
		}
		if i, ok := index[clientID.String()]; ok {
			clients[i].FileUploads = append(clients[i].FileUploads, f)
		}
	}
	return clients, fileRows.Err()
}

func (s *ClientStore) loadAttachments(ctx context.Context, c *models.Client) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT filename, path, mimetype, size FROM client_files WHERE client_id = $1 ORDER BY created_at
	`, c.ID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var f models.ClientFile
		if err := rows.Scan(&f.Filename, &f.Path, &f.Mimetype, &f.Size); err != nil {
			return err
		}
		c.FileUploads = append(c.FileUploads, f)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	noteRows, err := s.db.QueryContext(ctx, `
		SELECT id, created_at, body FROM client_notes WHERE client_id = $1 ORDER BY created_at
	`, c.ID)
	if err != nil {
		return err
	}
	defer noteRows.Close()
	for noteRows.Next() {
		var (
			n    models.ClientNote
			id   uuid.UUID
			body string
		)
		if err := noteRows.Scan(&id, &n.CreatedAt, &body); err != nil {
			return err
		}
		n.ID = id.String()
		if n.Body, err = s.cipher.Decrypt(body); err != nil {
			return fmt.Errorf("decrypt note: %w", err)
		}
		c.Notes = append(c.Notes, n)
	}
	return noteRows.Err()
}

// UpdateClient applies the non-nil fields of u.
func (s *ClientStore) UpdateClient(ctx context.Context, id string, u models.ClientUpdate) (*models.Client, error) {
	parsed, err := parseClientID(id)
	if err != nil {
		return nil, err
	}

	sets := []string{"updated_at = NOW()"}
	args := []interface{}{}
	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if u.FirstName != nil {
		add("first_name", *u.FirstName)
	}
	if u.LastName != nil {
		add("last_name", *u.LastName)
	}
	if u.Email != nil {
		add("email", *u.Email)
	}
	if u.Gender != nil {
		add("gender", string(*u.Gender))
	}
	if u.DateOfBirth != nil {
		add("date_of_birth", *u.DateOfBirth)
	}
	if u.Background != nil {
		enc, err := s.cipher.Encrypt(*u.Background)
		if err != nil {
			return nil, err
		}
		add("background", enc)
	}
	args = append(args, parsed)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	query := fmt.Sprintf(`UPDATE clients SET %s WHERE id = $%d`, strings.Join(sets, ", "), len(args))
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, conflictOr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, apperr.Newf(apperr.NotFound, "Client not found.")
	}
	return s.GetClient(ctx, id)
}

// ActivateClient stores the password hash and consumes the invite token. It
// only succeeds while the token is still on the record.
func (s *ClientStore) ActivateClient(ctx context.Context, id, token, passwordHash string) error {
	parsed, err := parseClientID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE clients
		SET password_hash = $1, is_active = TRUE, invite_token = NULL, invite_issued_at = NULL, updated_at = NOW()
		WHERE id = $2 AND invite_token = $3
	`, passwordHash, parsed, token)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.NotFound, "Client not found.")
	}
	return nil
}

// DeleteClient removes the client; files and notes cascade.
func (s *ClientStore) DeleteClient(ctx context.Context, id string) error {
	parsed, err := parseClientID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `DELETE FROM clients WHERE id = $1`, parsed)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.NotFound, "Client not found.")
	}
	return nil
}

func (s *ClientStore) AddClientFile(ctx context.Context, id string, f models.ClientFile) error {
	parsed, err := parseClientID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := insertFile(ctx, s.db, parsed, f); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation {
			return apperr.Newf(apperr.NotFound, "Client not found.")
		}
		return err
	}
	return nil
}

func (s *ClientStore) AddClientNote(ctx context.Context, id, body string) (*models.ClientNote, error) {
	parsed, err := parseClientID(id)
	if err != nil {
		return nil, err
	}
	enc, err := s.cipher.Encrypt(body)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	note := &models.ClientNote{ID: uuid.NewString(), CreatedAt: time.Now().UTC(), Body: body}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO client_notes (id, client_id, body, created_at) VALUES ($1, $2, $3, $4)
	`, note.ID, parsed, enc, note.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == foreignKeyViolation {
			return nil, apperr.Newf(apperr.NotFound, "Client not found.")
		}
		return nil, err
	}
	return note, nil
}

// SetInviteToken issues a fresh invitation for a client that has not activated yet.
func (s *ClientStore) SetInviteToken(ctx context.Context, id, token string, issuedAt time.Time) error {
	parsed, err := parseClientID(id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.db.ExecContext(ctx, `
		UPDATE clients SET invite_token = $1, invite_issued_at = $2, updated_at = NOW()
		WHERE id = $3 AND is_active = FALSE
	`, token, issuedAt, parsed)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.NotFound, "no pending invitation for client")
	}
	return nil
}
