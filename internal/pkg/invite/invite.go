// Package invite lets a student ask a parent to buy Pro, bounded by a rolling
// 24 hour quota per student.
package invite

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/ManuelReschke/StudyFox/app/models"
	"github.com/ManuelReschke/StudyFox/app/repository"
	"github.com/ManuelReschke/StudyFox/internal/pkg/cache"
	"github.com/ManuelReschke/StudyFox/internal/pkg/config"
	"github.com/ManuelReschke/StudyFox/internal/pkg/mail"
	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
)

const (
	Window = 24 * time.Hour

	quotaLockTTL = 30 * time.Second
)

var (
	ErrInvalidEmail   = errors.New("please enter a valid parent email address")
	ErrRateLimited    = errors.New("too many invites sent, please try again tomorrow")
	ErrDeliveryFailed = errors.New("the invite email could not be delivered")
	ErrInProgress     = errors.New("another invite is being sent, please try again in a moment")
)

// Locker serializes the quota check and insert per student.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

type Service struct {
	invites     repository.ParentInviteRepository
	mailer      mail.Mailer
	locker      Locker
	limit       int
	purchaseURL string
	now         func() time.Time
}

// NewService creates the invite service. locker may be nil.
func NewService(invites repository.ParentInviteRepository, mailer mail.Mailer, locker Locker, limit int, purchaseURL string) *Service {
	if limit <= 0 {
		limit = config.DefaultInviteDailyLimit
	}
	return &Service{
		invites:     invites,
		mailer:      mailer,
		locker:      locker,
		limit:       limit,
		purchaseURL: purchaseURL,
		now:         time.Now,
	}
}

// NormalizeEmail trims and lowercases an address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidEmail is a shape check only: a non-empty local part, an @ and a domain
// with a dot between non-empty labels.
func ValidEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	if strings.ContainsAny(email, " \t\r\n") {
		return false
	}
	domain := email[at+1:]
	dot := strings.Index(domain, ".")
	if dot <= 0 || dot == len(domain)-1 {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" {
			return false
		}
	}
	return true
}

// RequestInvite stores and sends one invite. The quota counts every stored
// invite, including failed ones. There is exactly one send attempt.
func (s *Service) RequestInvite(ctx context.Context, userID, parentEmail string) (*models.ParentInvite, error) {
	uid := strings.TrimSpace(userID)
	if uid == "" {
		return nil, errors.New("user id is required")
	}
	email := NormalizeEmail(parentEmail)
	if !ValidEmail(email) {
		return nil, ErrInvalidEmail
	}

	invite, err := s.reserve(ctx, uid, email)
	if err != nil {
		return nil, err
	}

	msg, err := mail.ParentInviteEmail(email, mail.ParentInviteData{PurchaseURL: template.URL(s.purchaseURL)})
	if err == nil {
		err = s.mailer.Send(ctx, msg)
	}
	if err != nil {
		log.Warnf("[Invite] delivery of invite %s failed: %v", invite.ID, err)
		invite.Status = models.InviteStatusFailed
		invite.Error = err.Error()
		if uerr := s.invites.UpdateStatus(ctx, invite.ID, invite.Status, invite.Error); uerr != nil {
			log.Errorf("[Invite] update invite %s: %v", invite.ID, uerr)
		}
		return invite, fmt.Errorf("%w: %v", ErrDeliveryFailed, err)
	}

	invite.Status = models.InviteStatusSent
	if err := s.invites.UpdateStatus(ctx, invite.ID, invite.Status, ""); err != nil {
		// the email is out; a stale status row only affects reporting
		log.Errorf("[Invite] update invite %s: %v", invite.ID, err)
	}
	log.Infof("[Invite] invite %s sent for user %s", invite.ID, uid)
	return invite, nil
}

// reserve checks the rolling quota and stores the invite row. Both run under
// a per-student lock so concurrent requests cannot overshoot the limit. If the
// lock is unavailable the check runs unguarded.
func (s *Service) reserve(ctx context.Context, uid, email string) (*models.ParentInvite, error) {
	if s.locker != nil {
		release, err := s.locker.Acquire(ctx, "invite:quota:"+uid, quotaLockTTL)
		switch {
		case errors.Is(err, cache.ErrLockHeld):
			return nil, ErrInProgress
		case err != nil:
			log.Warnf("[Invite] quota lock for user %s unavailable: %v", uid, err)
		default:
			defer release()
		}
	}

	now := s.now().UTC()
	count, err := s.invites.CountSince(ctx, uid, now.Add(-Window))
	if err != nil {
		return nil, fmt.Errorf("count invites: %w", err)
	}
	if count >= int64(s.limit) {
		log.Infof("[Invite] user %s hit the daily invite limit (%d)", uid, s.limit)
		return nil, ErrRateLimited
	}

	invite := &models.ParentInvite{
		ID:          uuid.NewString(),
		UserID:      uid,
		ParentEmail: email,
		Status:      models.InviteStatusSending,
		CreatedAt:   now,
	}
	if err := s.invites.Create(ctx, invite); err != nil {
		return nil, fmt.Errorf("store invite: %w", err)
	}
	return invite, nil
}
