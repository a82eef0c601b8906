package storefront

import (
	"context"
	"fmt"

	"storefront/internal/auth"
	"storefront/internal/models"
)

// onSession keeps the cart in step with the signed-in user: fetched on login,
// cleared on logout. Before Mount finishes only the user is recorded; Mount
// fetches the cart for whoever is signed in once it completes.
func (s *Storefront) onSession(ctx context.Context, sess *models.Session) {
	s.mu.Lock()
	if sess == nil {
		s.userID = ""
		s.cartSeq.invalidate()
		s.lines = []models.CartLine{}
		if s.mode.current == ModeCartOpen {
			s.mode = modeState{current: ModeBrowsing}
		}
		s.mu.Unlock()
		return
	}

	if sess.UID == s.userID {
		s.mu.Unlock()
		return
	}
	s.userID = sess.UID
	if !s.mounted {
		s.pendingCart = true
		s.mu.Unlock()
		return
	}
	seq := s.cartSeq.next()
	s.mu.Unlock()

	s.fetchCart(ctx, sess.UID, seq)
}

func (s *Storefront) fetchCart(ctx context.Context, userID string, seq uint64) {
	lines, err := s.store.GetCart(ctx, userID)
	if err != nil {
		s.logger.Error("Error fetching cart: %v", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != userID {
		return
	}
	s.applyCartLocked(seq, lines)
}

func (s *Storefront) Login(ctx context.Context, email, password string) error {
	if _, err := s.sessions.SignIn(ctx, email, password); err != nil {
		s.setAuthError("Failed to log in: ", err)
		return err
	}
	s.authSucceeded()
	return nil
}

// Register validates the form locally before anything reaches the provider.
func (s *Storefront) Register(ctx context.Context, email, password, confirm, displayName string) error {
	if err := auth.ValidateRegistration(password, confirm); err != nil {
		s.setAuthError("", err)
		return err
	}
	if _, err := s.sessions.SignUp(ctx, email, password, displayName); err != nil {
		s.setAuthError("Failed to create an account: ", err)
		return err
	}
	s.authSucceeded()
	return nil
}

func (s *Storefront) SignInWithGoogle(ctx context.Context) error {
	if _, err := s.sessions.SignInWithFederatedProvider(ctx); err != nil {
		s.setAuthError("Failed to sign in with Google: ", err)
		return err
	}
	s.authSucceeded()
	return nil
}

// ResetPassword starts password recovery for email. The auth modal stays where it is.
func (s *Storefront) ResetPassword(ctx context.Context, email string) error {
	if err := s.sessions.ResetPassword(ctx, email); err != nil {
		s.setAuthError("Failed to reset password: ", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.authError = ""
	s.notice = &Notice{Kind: NoticeInfo, Message: fmt.Sprintf("Password reset instructions were sent to %s", email)}
	return nil
}

// ChangePassword replaces the signed-in user's password after the same local
// checks registration applies.
func (s *Storefront) ChangePassword(ctx context.Context, password, confirm string) error {
	if s.sessions.CurrentSession() == nil {
		s.mu.Lock()
		s.transitionLocked(ActionRequestAuth, false)
		s.mu.Unlock()
		return ErrSignInRequired
	}
	if err := auth.ValidateRegistration(password, confirm); err != nil {
		s.setAuthError("", err)
		return err
	}
	if err := s.sessions.UpdatePassword(ctx, password); err != nil {
		s.setAuthError("Failed to change password: ", err)
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.authError = ""
	s.notice = &Notice{Kind: NoticeSuccess, Message: "Password updated"}
	return nil
}

func (s *Storefront) Logout(ctx context.Context) {
	s.sessions.SignOut(ctx)
}

func (s *Storefront) setAuthError(prefix string, err error) {
	msg := err.Error()
	if ae, ok := auth.AsAuthError(err); ok {
		msg = ae.Message
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.authError = prefix + msg
}

func (s *Storefront) authSucceeded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.authError = ""
	if s.mode.authOpen() {
		s.transitionLocked(ActionAuthSuccess, true)
	}
}
