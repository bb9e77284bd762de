// Package service orchestrates link creation and retrieval. It is the only
// component the http layer talks to; all coordination between concurrent readers
// is delegated to the stores' atomic primitives so the service itself stays
// stateless and can run as multiple instances.
package service

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	pe "vanish.io/linkcore/errors"
	md "vanish.io/linkcore/models"
	st "vanish.io/linkcore/stores"
)

// CreateRequest carries everything needed to mint a new link.
type CreateRequest struct {
	Content  string
	Type     md.ContentType
	Options  md.CreateOptions
	FileMeta *md.FileMeta
}

type LinkService struct {
	Store st.LinkStore
	Guard st.ConsumptionGuard
	// Now vends the clock so tests can steer time
	Now func() time.Time
}

func New(store st.LinkStore, guard st.ConsumptionGuard) *LinkService {
	return &LinkService{Store: store, Guard: guard, Now: time.Now}
}

// Create validates the request, persists the record and, for one-time links,
// registers the consumption flag. The two writes must not partially apply: if the
// flag registration fails after a durable insert, the insert is rolled back with a
// compensating delete and the whole operation fails.
func (s *LinkService) Create(ctx context.Context, req CreateRequest) (string, *pe.Err) {
	expiry, err := validateCreate(&req)
	if err != nil {
		return "", err
	}
	linkKsuid, kerr := ksuid.NewRandom()
	if kerr != nil {
		log.WithError(kerr).Error("Create: fail to generate link id")
		return "", pe.NewServiceFailure("error generating link id").WithCause(kerr)
	}
	now := s.Now()
	l := &md.Link{
		ID:           linkKsuid.String(),
		Content:      req.Content,
		Type:         req.Type,
		CreatedAt:    now,
		ExpiresAt:    now.Add(expiry),
		MaxViews:     req.Options.MaxViews,
		IsEncrypted:  req.Options.Encrypt,
		IsOneTime:    req.Options.OneTime,
		DownloadOnly: req.Options.DownloadOnly,
	}
	if req.FileMeta != nil {
		l.FileName, l.FileSize, l.MimeType = req.FileMeta.Name, req.FileMeta.Size, req.FileMeta.Mime
	}
	if req.Options.Password != "" {
		hash, herr := bcrypt.GenerateFromPassword([]byte(req.Options.Password), bcrypt.DefaultCost)
		if herr != nil {
			log.WithError(herr).Error("Create: error hashing link password")
			return "", pe.NewServiceFailure("error hashing link password").WithCause(herr)
		}
		l.PasswordHash = string(hash)
	}
	clog := log.WithFields(log.Fields{"linkID": l.ID, "linkExpiry": l.ExpiresAt})
	if err := s.Store.Insert(ctx, l); err != nil {
		clog.WithError(err).Error("Create: error persisting link")
		return "", err
	}
	if l.IsOneTime {
		if err := s.Guard.Register(ctx, l.ID, l.RemainingLifetime(now)); err != nil {
			clog.WithError(err).Error("Create: error registering consumption flag, rolling back record")
			// a one-time record without its flag would read as an ordinary link,
			// which is a correctness bug; an orphaned flag the other way around is
			// inert, hence record first, flag second, compensate on failure
			if derr := s.Store.Delete(ctx, l.ID); derr != nil {
				clog.WithError(derr).Error("Create: compensating delete failed, record may linger until expiry")
			}
			return "", pe.NewServiceFailure("error registering one-time link").WithCause(err)
		}
	}
	return l.ID, nil
}

// Retrieve runs the read pipeline in a fixed order: fetch, password, expiry,
// one-time claim, bounded increment. Expiry comes before the claim because an
// expired link must read as Gone no matter its quota or one-time state, and the
// check is free - it never touches the ephemeral store. Every rejecting step
// leaves all mutable state untouched.
func (s *LinkService) Retrieve(ctx context.Context, id, password string) (*md.LinkPayload, *pe.Err) {
	clog := log.WithField("linkID", id)
	l, err := s.Store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if l.PasswordHash != "" {
		if cerr := bcrypt.CompareHashAndPassword([]byte(l.PasswordHash), []byte(password)); cerr != nil {
			return nil, pe.NewForbidden("password missing or incorrect")
		}
	}
	if l.Expired(s.Now()) {
		return nil, pe.NewGone("link expired")
	}
	// cheap pre-check; the conditional increment below stays authoritative
	if l.QuotaExceeded() {
		return nil, pe.NewGone("view limit exceeded")
	}
	if l.IsOneTime {
		claimed, err := s.Guard.Claim(ctx, l.ID)
		if err != nil {
			clog.WithError(err).Error("Retrieve: error claiming consumption flag")
			return nil, err
		}
		if !claimed {
			return nil, pe.NewGone("one-time link already consumed")
		}
	}
	count, err := s.Store.IncrementViews(ctx, l.ID, l.MaxViews)
	if err != nil {
		if err.Code != pe.ErrCodeGone {
			clog.WithError(err).Error("Retrieve: error incrementing view count")
		}
		return nil, err
	}
	return &md.LinkPayload{
		ID:           l.ID,
		Content:      l.Content,
		Type:         l.Type,
		ExpiresAt:    l.ExpiresAt,
		MaxViews:     l.MaxViews,
		CurrentViews: count,
		IsEncrypted:  l.IsEncrypted,
		IsOneTime:    l.IsOneTime,
		DownloadOnly: l.DownloadOnly,
		FileName:     l.FileName,
		FileSize:     l.FileSize,
		MimeType:     l.MimeType,
	}, nil
}

func validateCreate(req *CreateRequest) (time.Duration, *pe.Err) {
	if req.Content == "" {
		return 0, pe.NewBadInput("content must not be empty")
	}
	if _, ok := md.ContentTypeVals[req.Type]; !ok {
		return 0, pe.NewBadInput(fmt.Sprintf("unrecognized content type %q", req.Type))
	}
	// an unknown expiry code is rejected instead of silently falling back to a default
	expiry, ok := md.ExpiryVals[req.Options.Expiry]
	if !ok {
		return 0, pe.NewBadInput(fmt.Sprintf("unrecognized expiry code %q", req.Options.Expiry))
	}
	if req.Options.MaxViews < 0 {
		return 0, pe.NewBadInput("maxViews must be non-negative")
	}
	return expiry, nil
}
