package clinic

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"vetclinic-booking/internal/auth"
	"vetclinic-booking/internal/localcache"
	"vetclinic-booking/internal/mirror"
	"vetclinic-booking/internal/model"
)

type RegisterInput struct {
	Name            string
	Email           string
	Phone           string
	Password        string
	ConfirmPassword string
}

func (in RegisterInput) validate() error {
	switch {
	case strings.TrimSpace(in.Name) == "":
		return ErrNameRequired
	case !validEmail(in.Email):
		return ErrInvalidEmail
	case !validPhone(in.Phone):
		return ErrInvalidPhone
	case in.Password == "":
		return ErrPasswordRequired
	case in.Password != in.ConfirmPassword:
		return ErrPasswordMismatch
	}
	return nil
}

// Register creates a regular user and logs them in. A duplicate email leaves
// the user list untouched.
func (a *App) Register(ctx context.Context, in RegisterInput) (model.Session, model.User, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := in.validate(); err != nil {
		return model.Session{}, model.User{}, err
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	sid, err := auth.NewSessionID()
	if err != nil {
		return model.Session{}, model.User{}, err
	}

	var (
		sess model.Session
		user model.User
	)
	err = a.do(ctx, func(s *state) error {
		if emailInUse(s.users, in.Email, "") {
			return ErrEmailTaken
		}
		now := a.now()
		user = model.User{
			ID:           uuid.New().String(),
			Name:         strings.TrimSpace(in.Name),
			Email:        in.Email,
			Phone:        in.Phone,
			PasswordHash: hash,
			Role:         model.RoleUser,
			CreatedAt:    now,
		}
		s.users = append(s.users, user)
		a.store(ctx, localcache.KeyUsers, s.users)
		sess = a.openSession(ctx, s, sid, user)
		return nil
	})
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	a.attach(ctx, sess)
	return sess, user.Public(), nil
}

// Login checks credentials and opens a session. Every failure looks the same.
func (a *App) Login(ctx context.Context, email, password string) (model.Session, model.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return model.Session{}, model.User{}, ErrInvalidCredentials
	}

	var user model.User
	found := false
	err := a.do(ctx, func(s *state) error {
		for _, u := range s.users {
			if sameEmail(u.Email, email) {
				user, found = u, true
				break
			}
		}
		return nil
	})
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	if !found || !auth.CheckPassword(user.PasswordHash, password) {
		return model.Session{}, model.User{}, ErrInvalidCredentials
	}

	sid, err := auth.NewSessionID()
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	var sess model.Session
	err = a.do(ctx, func(s *state) error {
		i, ok := findUser(s.users, user.ID)
		if !ok {
			return ErrInvalidCredentials
		}
		user = s.users[i]
		sess = a.openSession(ctx, s, sid, user)
		return nil
	})
	if err != nil {
		return model.Session{}, model.User{}, err
	}
	a.attach(ctx, sess)
	return sess, user.Public(), nil
}

func (a *App) openSession(ctx context.Context, s *state, sid string, u model.User) model.Session {
	sess := model.Session{ID: sid, UserID: u.ID, Role: u.Role, CreatedAt: a.now()}
	s.sessions[sid] = sess
	a.store(ctx, localcache.KeySessions, s.sessions)
	return sess
}

// Logout ends the session. Appointments already loaded stay in memory.
func (a *App) Logout(ctx context.Context, sid string) error {
	return a.do(ctx, func(s *state) error {
		if _, ok := s.sessions[sid]; !ok {
			return ErrNoSession
		}
		a.dropSession(ctx, s, sid)
		return nil
	})
}

func (a *App) dropSession(ctx context.Context, s *state, sid string) {
	delete(s.sessions, sid)
	if stop, ok := s.watchers[sid]; ok {
		stop()
		delete(s.watchers, sid)
	}
	a.store(ctx, localcache.KeySessions, s.sessions)
}

// Session returns the live session for sid with its current role.
func (a *App) Session(ctx context.Context, sid string) (model.Session, error) {
	var sess model.Session
	err := a.do(ctx, func(s *state) error {
		v, ok := s.sessions[sid]
		if !ok {
			return ErrNoSession
		}
		sess = v
		return nil
	})
	return sess, err
}

func (a *App) Profile(ctx context.Context, sess model.Session) (model.User, error) {
	var u model.User
	err := a.do(ctx, func(s *state) error {
		i, ok := findUser(s.users, sess.UserID)
		if !ok {
			return ErrNoSession
		}
		u = s.users[i].Public()
		return nil
	})
	return u, err
}

// attach pulls the session's remote view and starts following it.
func (a *App) attach(ctx context.Context, sess model.Session) {
	if !a.mirror.Enabled() {
		return
	}
	a.refresh(ctx, sess)
	a.watch(sess)
}

// refresh folds the remote view for sess into local state. Nothing is pushed
// back. A view read while local writes were queued is dropped; resync pulls
// again once they land.
func (a *App) refresh(ctx context.Context, sess model.Session) {
	gen := a.push.generation()
	p, ok := a.mirror.Pull(ctx, sess)
	if !ok {
		return
	}
	_ = a.do(ctx, func(s *state) error {
		if !a.push.settled(gen) {
			return nil
		}
		s.appointments = s.dropPurged(p.Apply(s.appointments))
		if p.Settings != nil {
			s.settings = *p.Settings
		}
		a.saveShared(s, nil)
		return nil
	})
}

func (a *App) watch(sess model.Session) {
	wctx, cancel := context.WithCancel(a.bg)
	err := a.do(wctx, func(s *state) error {
		if _, ok := s.sessions[sess.ID]; !ok {
			return ErrNoSession
		}
		if old, ok := s.watchers[sess.ID]; ok {
			old()
		}
		s.watchers[sess.ID] = cancel
		return nil
	})
	if err != nil {
		cancel()
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.mirror.Watch(wctx, sess, func(row model.UserDataRow) {
			a.onRemoteChange(wctx, sess, row)
		})
	}()
}

// onRemoteChange follows one row change. Echoes that arrive while this
// process still has writes queued may be stale and are left to resync.
func (a *App) onRemoteChange(ctx context.Context, sess model.Session, row model.UserDataRow) {
	if sess.IsAdmin() {
		a.refresh(ctx, sess)
		return
	}
	_ = a.do(ctx, func(s *state) error {
		if !a.push.quiet() {
			return nil
		}
		s.appointments = s.dropPurged(mirror.MergeUser(s.appointments, sess.UserID, row.Data.Appointments))
		if row.Data.Settings != nil {
			s.settings = *row.Data.Settings
		}
		a.saveShared(s, nil)
		return nil
	})
}
