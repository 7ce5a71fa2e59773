package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"time"

	"golang.org/x/crypto/bcrypt"

	"portfolio/api/internal/auth"
	"portfolio/api/internal/authpw"
	"portfolio/api/internal/config"
	"portfolio/api/internal/export"
	"portfolio/api/internal/ordering"
	"portfolio/api/internal/search"
	"portfolio/api/internal/session"
	"portfolio/api/internal/store"
	"portfolio/api/internal/util"
)

// fallbackCategoryName is the category that absorbs projects when their
// own category is deleted. Bootstrap guarantees it exists; the deletion
// path fails with CONFIG_ERROR if it has gone missing since.
const fallbackCategoryName = "Other"

const defaultAboutContent = "# About Me\n\nWrite something about yourself here.\n"

type Session struct {
	Token        string
	RefreshToken string
	AdminID      string
	Email        string
	JTI          string
	ExpiresAt    time.Time
}

type dataStore interface {
	store.Mutator

	InTx(ctx context.Context, fn func(store.Mutator) error) error
	Ping(ctx context.Context) error

	GetProfile(ctx context.Context) (store.Profile, error)
	SetProfileImage(ctx context.Context, imageURL string) error
	ClearProfileImage(ctx context.Context) error
	SetProfileData(ctx context.Context, data json.RawMessage) error
	ClearProfileData(ctx context.Context) error

	GetProfileStats(ctx context.Context) (store.ProfileStats, error)

	EnsureAdmin(ctx context.Context, admin store.Admin) error
	GetAdminByID(ctx context.Context, id string) (store.Admin, error)
}

type sessionStore interface {
	SaveRefreshToken(ctx context.Context, tokenHash, adminID, email string, expiresAt time.Time) error
	LookupRefreshToken(ctx context.Context, tokenHash string) (session.RefreshData, error)
	RevokeRefreshToken(ctx context.Context, tokenHash string) error
	Ping(ctx context.Context) error
}

type blobStore interface {
	IsConfigured() bool
	Put(ctx context.Context, kind, filename string, r io.Reader, size int64) (string, error)
	Remove(ctx context.Context, key string) error
	URL(key string) string
	KeyFromURL(url string) string
}

type aboutStore interface {
	Ensure(initial, author string) error
	Commit(content, author, message string) (store.CommitInfo, error)
	Head() (string, store.CommitInfo, error)
	History(limit int) ([]store.CommitInfo, error)
	Restore(hash, author string) (string, store.CommitInfo, error)
}

// searchIndex is the best-effort indexing surface; a nil index disables
// search entirely.
type searchIndex interface {
	Search(q search.Query) search.Response
	IndexProject(p search.ProjectRecord)
	IndexSkill(sk search.SkillRecord)
	DeleteProject(id string)
	DeleteSkill(id string)
}

type passwordService interface {
	SignIn(ctx context.Context, email, password string) (store.Admin, error)
	ChangePassword(ctx context.Context, adminID, current, next string) error
	RequestPasswordReset(ctx context.Context, email string) error
	VerifyReset(ctx context.Context, email, code, newPassword string) error
}

type chatService interface {
	Stream(ctx context.Context, chatID, message string, onToken func(string)) error
	History(ctx context.Context, chatID string) ([]session.ChatMessage, error)
}

type statsRefresher interface {
	Refresh(ctx context.Context) error
}

type resumeExporter interface {
	ExportResume(ctx context.Context) (*export.Result, error)
}

type Service struct {
	cfg       config.Config
	store     dataStore
	sessions  sessionStore
	locks     *ordering.ScopeLocks
	passwords passwordService
	blobs     blobStore
	about     aboutStore
	search    searchIndex
	chat      chatService
	stats     statsRefresher
	exporter  resumeExporter
}

// Options carries the optional collaborators; any nil field disables the
// corresponding endpoints.
type Options struct {
	Blobs    blobStore
	About    aboutStore
	Search   searchIndex
	Chat     chatService
	Stats    statsRefresher
	Exporter resumeExporter
}

func New(cfg config.Config, dataStore *store.PostgresStore, sessions *session.RedisStore, passwords *authpw.Service, opts Options) *Service {
	return &Service{
		cfg:       cfg,
		store:     dataStore,
		sessions:  sessions,
		locks:     ordering.NewScopeLocks(),
		passwords: passwords,
		blobs:     opts.Blobs,
		about:     opts.About,
		search:    opts.Search,
		chat:      opts.Chat,
		stats:     opts.Stats,
		exporter:  opts.Exporter,
	}
}

// Bootstrap seeds the admin account, the fallback project category, and
// the about-page repository. Safe to run on every start.
func (s *Service) Bootstrap(ctx context.Context) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(s.cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.store.EnsureAdmin(ctx, store.Admin{
		ID:           util.NewID("adm"),
		Email:        s.cfg.AdminEmail,
		PasswordHash: string(hash),
	}); err != nil {
		return err
	}

	if _, err := s.store.FindProjectCategoryByName(ctx, fallbackCategoryName); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		if err := s.createFallbackCategory(ctx); err != nil {
			return err
		}
	}

	if s.about != nil {
		if err := s.about.Ensure(defaultAboutContent, "system"); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) createFallbackCategory(ctx context.Context) error {
	scope := categoryScope()
	unlock := s.locks.LockPair(scope, scope)
	defer unlock()

	return s.store.InTx(ctx, func(mut store.Mutator) error {
		order, err := ordering.AppendOrder(ctx, mut.CategoryOrders(), scope)
		if err != nil {
			return err
		}
		return mut.InsertProjectCategory(ctx, store.ProjectCategory{
			ID:           util.NewID("cat"),
			Name:         fallbackCategoryName,
			Description:  "Projects without a category of their own",
			DisplayOrder: order,
			Enabled:      true,
		})
	})
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) PingSessions(ctx context.Context) error {
	return s.sessions.Ping(ctx)
}

// --- Sessions ---

func (s *Service) Login(ctx context.Context, email, password string) (Session, error) {
	admin, err := s.passwords.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, unauthorized("Invalid email or password")
	}
	return s.issueSession(ctx, admin)
}

func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	data, err := s.sessions.LookupRefreshToken(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return Session{}, unauthorized("Refresh token invalid")
		}
		return Session{}, err
	}
	if err := s.sessions.RevokeRefreshToken(ctx, tokenHash); err != nil {
		return Session{}, err
	}
	admin, err := s.store.GetAdminByID(ctx, data.AdminID)
	if err != nil {
		return Session{}, err
	}
	return s.issueSession(ctx, admin)
}

func (s *Service) issueSession(ctx context.Context, admin store.Admin) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := auth.IssueToken([]byte(s.cfg.JWTSecret), auth.Claims{
		Sub:   admin.ID,
		Email: admin.Email,
		JTI:   jti,
		Exp:   expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewID("rft") + util.NewID("")
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshToken(ctx, auth.HashToken(refresh), admin.ID, admin.Email, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		AdminID:      admin.ID,
		Email:        admin.Email,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.JWTSecret), token)
	if err != nil {
		return Session{}, err
	}
	return Session{
		Token:     token,
		AdminID:   claims.Sub,
		Email:     claims.Email,
		JTI:       claims.JTI,
		ExpiresAt: time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	return s.sessions.RevokeRefreshToken(ctx, auth.HashToken(refreshToken))
}

func (s *Service) ChangePassword(ctx context.Context, adminID, current, next string) error {
	if err := s.passwords.ChangePassword(ctx, adminID, current, next); err != nil {
		return invalidArgument(err.Error())
	}
	return nil
}

func (s *Service) RequestPasswordReset(ctx context.Context, email string) error {
	return s.passwords.RequestPasswordReset(ctx, email)
}

func (s *Service) VerifyPasswordReset(ctx context.Context, email, code, newPassword string) error {
	if err := s.passwords.VerifyReset(ctx, email, code, newPassword); err != nil {
		return invalidArgument(err.Error())
	}
	return nil
}
