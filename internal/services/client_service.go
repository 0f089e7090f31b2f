package services

import (
	"context"
	"encoding/base64"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/AnshRaj112/journeygen-backend/internal/apperr"
	"github.com/AnshRaj112/journeygen-backend/internal/events"
	"github.com/AnshRaj112/journeygen-backend/internal/mailer"
	"github.com/AnshRaj112/journeygen-backend/internal/models"
	"github.com/AnshRaj112/journeygen-backend/internal/storage"
	"github.com/AnshRaj112/journeygen-backend/pkg/logger"
	"github.com/AnshRaj112/journeygen-backend/pkg/utils"
)

// ClientRepository is the persistence the client service needs. Lookups
// return an apperr NotFound when nothing matches.
type ClientRepository interface {
	CreateClient(ctx context.Context, c *models.Client) error
	GetClient(ctx context.Context, id string) (*models.Client, error)
	FindClientByEmail(ctx context.Context, email string) (*models.Client, error)
	FindClientByInviteToken(ctx context.Context, token string) (*models.Client, error)
	ListClients(ctx context.Context) ([]models.Client, error)
	UpdateClient(ctx context.Context, id string, u models.ClientUpdate) (*models.Client, error)
	ActivateClient(ctx context.Context, id, token, passwordHash string) error
	SetInviteToken(ctx context.Context, id, token string, issuedAt time.Time) error
	DeleteClient(ctx context.Context, id string) error
	AddClientFile(ctx context.Context, id string, f models.ClientFile) error
	AddClientNote(ctx context.Context, id, body string) (*models.ClientNote, error)
}

// Upload is a file received from a multipart form.
type Upload struct {
	Filename string
	Mimetype string
	Size     int64
	Body     io.Reader
}

type NewClient struct {
	FirstName   string
	LastName    string
	Email       string
	Gender      string
	DateOfBirth string
	Background  string
	File        *Upload
}

type ClientService struct {
	store       ClientRepository
	files       storage.FileStore
	mail        mailer.Mailer
	events      events.Publisher
	log         *logger.Logger
	frontendURL string
	inviteTTL   time.Duration
	now         func() time.Time
}

func NewClientService(store ClientRepository, files storage.FileStore, mail mailer.Mailer, pub events.Publisher, log *logger.Logger, frontendURL string, inviteTTL time.Duration) *ClientService {
	if pub == nil {
		pub = events.Nop{}
	}
	return &ClientService{
		store:       store,
		files:       files,
		mail:        mail,
		events:      pub,
		log:         log,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		inviteTTL:   inviteTTL,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

const dateLayout = "2006-01-02"

// ParseDate accepts YYYY-MM-DD or RFC 3339. Empty input yields nil.
func ParseDate(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, apperr.Newf(apperr.Validation, "\"dateOfBirth\" must be a date in YYYY-MM-DD format.")
}

// Create stores a new client, issues an invitation token and mails the
// activation link in the background.
func (s *ClientService) Create(ctx context.Context, in NewClient) (*models.Client, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if in.FirstName == "" || in.LastName == "" || in.Email == "" {
		return nil, apperr.Newf(apperr.Validation, "firstName, lastName, and email are required.")
	}
	gender, ok := models.ParseGender(strings.TrimSpace(in.Gender))
	if !ok {
		return nil, apperr.Newf(apperr.Validation, "\"gender\" must be Male, Female, or Other.")
	}
	dob, err := ParseDate(in.DateOfBirth)
	if err != nil {
		return nil, err
	}

	token, err := utils.NewInviteToken()
	if err != nil {
		return nil, err
	}
	issued := s.now()
	client := &models.Client{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Email:          in.Email,
		Gender:         gender,
		DateOfBirth:    dob,
		Background:     in.Background,
		InviteToken:    token,
		InviteIssuedAt: &issued,
		FileUploads:    []models.ClientFile{},
	}

	if in.File != nil {
		f, err := s.saveFile(ctx, in.File)
		if err != nil {
			return nil, err
		}
		client.FileUploads = append(client.FileUploads, f)
	}

	if err := s.store.CreateClient(ctx, client); err != nil {
		for _, f := range client.FileUploads {
			if delErr := s.files.Delete(ctx, f.Path); delErr != nil {
				s.log.Warn("failed to remove orphaned upload", "path", f.Path, "error", delErr)
			}
		}
		return nil, err
	}

	s.sendInvite(ctx, client, token)
	s.events.Publish(ctx, events.Event{Type: events.TypeClientInvited, ClientID: client.ID})
	s.log.Info("client created", "client_id", client.ID)
	return client, nil
}

// ReissueInvite replaces the invitation token of a client that has not activated.
func (s *ClientService) ReissueInvite(ctx context.Context, id string) error {
	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		return err
	}
	if client.IsActive {
		return apperr.Newf(apperr.Conflict, "Client is already active.")
	}
	token, err := utils.NewInviteToken()
	if err != nil {
		return err
	}
	if err := s.store.SetInviteToken(ctx, id, token, s.now()); err != nil {
		return err
	}
	s.sendInvite(ctx, client, token)
	return nil
}

// InviteLink is the activation URL mailed to a client.
func (s *ClientService) InviteLink(token string) string {
	return s.frontendURL + "/set-password?token=" + url.QueryEscape(token)
}

func (s *ClientService) sendInvite(ctx context.Context, c *models.Client, token string) {
	link := s.InviteLink(token)
	to, name := c.Email, c.FirstName
	go func() {
		mailCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if err := s.mail.SendInvite(mailCtx, to, name, link); err != nil {
			s.log.Error("failed to send invite email", "client_id", c.ID, "error", err)
			return
		}
		s.log.Info("invite email sent", "client_id", c.ID)
	}()
}

func (s *ClientService) saveFile(ctx context.Context, up *Upload) (models.ClientFile, error) {
	locator, err := s.files.Save(ctx, up.Filename, up.Body)
	if err != nil {
		return models.ClientFile{}, err
	}
	return models.ClientFile{
		Filename: path.Base(locator),
		Path:     locator,
		Mimetype: up.Mimetype,
		Size:     up.Size,
	}, nil
}

func (s *ClientService) List(ctx context.Context) ([]models.Client, error) {
	return s.store.ListClients(ctx)
}

func (s *ClientService) Get(ctx context.Context, id string) (*models.Client, error) {
	return s.store.GetClient(ctx, id)
}

func (s *ClientService) Update(ctx context.Context, id string, u models.ClientUpdate) (*models.Client, error) {
	if u.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*u.Email))
		if email == "" {
			return nil, apperr.Newf(apperr.Validation, "\"email\" cannot be empty.")
		}
		u.Email = &email
	}
	for field, v := range map[string]*string{"firstName": u.FirstName, "lastName": u.LastName} {
		if v != nil && strings.TrimSpace(*v) == "" {
			return nil, apperr.Newf(apperr.Validation, "%q cannot be empty.", field)
		}
	}
	return s.store.UpdateClient(ctx, id, u)
}

// Delete removes the client record and its stored files.
func (s *ClientService) Delete(ctx context.Context, id string) error {
	client, err := s.store.GetClient(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteClient(ctx, id); err != nil {
		return err
	}
	for _, f := range client.FileUploads {
		if err := s.files.Delete(ctx, f.Path); err != nil {
			s.log.Warn("failed to remove client file", "client_id", id, "path", f.Path, "error", err)
		}
	}
	return nil
}

func (s *ClientService) AttachFile(ctx context.Context, id string, up *Upload) (*models.ClientFile, error) {
	if _, err := s.store.GetClient(ctx, id); err != nil {
		return nil, err
	}
	f, err := s.saveFile(ctx, up)
	if err != nil {
		return nil, err
	}
	if err := s.store.AddClientFile(ctx, id, f); err != nil {
		_ = s.files.Delete(ctx, f.Path)
		return nil, err
	}
	return &f, nil
}

// AddNote appends a note. Notes cannot be edited or removed.
func (s *ClientService) AddNote(ctx context.Context, id, body string) (*models.ClientNote, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Newf(apperr.Validation, "\"body\" is required.")
	}
	return s.store.AddClientNote(ctx, id, body)
}

// SetPassword activates the account holding token.
func (s *ClientService) SetPassword(ctx context.Context, token, password, confirm string) error {
	if token == "" || password == "" || confirm == "" {
		return apperr.Newf(apperr.Validation, "All fields required.")
	}
	if password != confirm {
		return apperr.Newf(apperr.Validation, "Passwords do not match.")
	}

	invalid := apperr.Newf(apperr.NotFound, "Invalid or expired token.")
	client, err := s.store.FindClientByInviteToken(ctx, token)
	switch {
	case apperr.IsKind(err, apperr.NotFound):
		return invalid
	case err != nil:
		return err
	}
	if s.inviteTTL > 0 && client.InviteIssuedAt != nil && s.now().Sub(*client.InviteIssuedAt) > s.inviteTTL {
		return invalid
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return err
	}
	if err := s.store.ActivateClient(ctx, client.ID, token, hash); err != nil {
		if apperr.IsKind(err, apperr.NotFound) {
			return invalid
		}
		return err
	}

	s.log.Info("client activated", "client_id", client.ID)
	s.events.Publish(ctx, events.Event{Type: events.TypeClientActivated, ClientID: client.ID})
	return nil
}

// Login checks a client's credentials and returns the token the frontend
// sends back as a Bearer credential.
func (s *ClientService) Login(ctx context.Context, email, password string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", apperr.Newf(apperr.Validation, "Email and password required.")
	}

	client, err := s.store.FindClientByEmail(ctx, email)
	switch {
	case apperr.IsKind(err, apperr.NotFound):
		return "", apperr.Newf(apperr.NotFound, "No client with that email.")
	case err != nil:
		return "", err
	}
	if !client.IsActive {
		return "", apperr.Newf(apperr.Forbidden, "Account not activated yet.")
	}
	ok, err := utils.VerifyPassword(password, client.PasswordHash)
	if err != nil || !ok {
		return "", apperr.Newf(apperr.Forbidden, "Invalid password.")
	}
	return base64.StdEncoding.EncodeToString([]byte(email + ":" + password)), nil
}
