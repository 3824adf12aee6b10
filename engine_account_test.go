package phonebook_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/MrEthical07/phonebook"
)

func TestCurrentReturnsProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signupVerified(t, testEmail, testPassword)

	view, err := env.engine.Current(context.Background(), env.userID(t, testEmail))
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if view.Email != testEmail || !view.Verified {
		t.Fatalf("unexpected view %+v", view)
	}
	if _, err := env.engine.Current(context.Background(), "missing"); !errors.Is(err, phonebook.ErrUnknownUser) {
		t.Fatalf("expected ErrUnknownUser, got %v", err)
	}
}

func TestUpdateSubscription(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.signupVerified(t, testEmail, testPassword)
	userID := env.userID(t, testEmail)

	view, err := env.engine.UpdateSubscription(ctx, userID, " Business ")
	if err != nil {
		t.Fatalf("UpdateSubscription failed: %v", err)
	}
	if view.Subscription != phonebook.SubscriptionBusiness {
		t.Fatalf("subscription = %q", view.Subscription)
	}

	_, err = env.engine.UpdateSubscription(ctx, userID, "platinum")
	if !errors.Is(err, phonebook.ErrInvalidSubscription) {
		t.Fatalf("expected ErrInvalidSubscription, got %v", err)
	}
	if phonebook.KindOf(err) != phonebook.KindValidation {
		t.Fatalf("expected validation kind, got %v", phonebook.KindOf(err))
	}
}

func TestChangePassword(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.signupVerified(t, testEmail, testPassword)
	userID := env.userID(t, testEmail)

	login, err := env.engine.Login(ctx, testEmail, testPassword)
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	if err := env.engine.ChangePassword(ctx, userID, testPassword, "changed1", "changed2"); !errors.Is(err, phonebook.ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if err := env.engine.ChangePassword(ctx, userID, "wrong-old", "changed1", "changed1"); !errors.Is(err, phonebook.ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, login.AccessToken); err != nil {
		t.Fatalf("failed change must keep the session: %v", err)
	}

	if err := env.engine.ChangePassword(ctx, userID, testPassword, "changed1", "changed1"); err != nil {
		t.Fatalf("ChangePassword failed: %v", err)
	}
	if _, err := env.engine.Authenticate(ctx, login.AccessToken); !errors.Is(err, phonebook.ErrNoSession) {
		t.Fatalf("expected ErrNoSession after change, got %v", err)
	}
	if _, err := env.engine.Login(ctx, testEmail, "changed1"); err != nil {
		t.Fatalf("new password rejected: %v", err)
	}
	if got := env.engine.MetricsSnapshot().Counters[phonebook.MetricPasswordChangeSuccess]; got != 1 {
		t.Fatalf("password change counter = %d", got)
	}
}

func TestUpdateAvatar(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	env.signupVerified(t, testEmail, testPassword)
	userID := env.userID(t, testEmail)

	url, err := env.engine.UpdateAvatar(ctx, userID, strings.NewReader("png"), "me.png")
	if err != nil {
		t.Fatalf("UpdateAvatar failed: %v", err)
	}
	if url != "/avatars/"+userID+".png" {
		t.Fatalf("unexpected url %q", url)
	}

	view, err := env.engine.Current(ctx, userID)
	if err != nil {
		t.Fatalf("Current failed: %v", err)
	}
	if view.AvatarURL != url {
		t.Fatalf("avatar not stored, got %q", view.AvatarURL)
	}

	if _, err := env.engine.UpdateAvatar(ctx, userID, nil, "x.png"); !errors.Is(err, phonebook.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestZeroEngineIsNotReady(t *testing.T) {
	var e *phonebook.Engine
	if _, err := e.Login(context.Background(), testEmail, testPassword); !errors.Is(err, phonebook.ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	if _, err := e.Authenticate(context.Background(), "x"); !errors.Is(err, phonebook.ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	e.Close()
}
