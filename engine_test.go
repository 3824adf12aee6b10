package phonebook_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/phonebook"
	"github.com/MrEthical07/phonebook/internal/memstore"
	"github.com/MrEthical07/phonebook/mailer"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const (
	testEmail    = "a@x.com"
	testPassword = "secret1"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	engine *phonebook.Engine
	users  *memstore.Users
	outbox *mailer.Outbox
	mr     *miniredis.Miniredis
	clock  *testClock
	audit  *phonebook.ChannelSink
}

func testConfig() phonebook.Config {
	cfg := phonebook.DefaultConfig()
	cfg.JWT.AccessSecret = []byte(strings.Repeat("a", 32))
	cfg.JWT.RefreshSecret = []byte(strings.Repeat("r", 32))
	cfg.Recovery.Secret = []byte(strings.Repeat("s", 32))
	cfg.Recovery.PublicBaseURL = "http://phonebook.test"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func newTestEnv(t *testing.T, mutate func(*phonebook.Config)) *testEnv {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	clock := &testClock{now: time.Now()}
	env := &testEnv{
		users:  memstore.NewUsers().WithClock(clock.Now),
		outbox: mailer.NewOutbox(),
		mr:     mr,
		clock:  clock,
		audit:  phonebook.NewChannelSink(256),
	}

	engine, err := phonebook.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(env.users).
		WithMailer(env.outbox).
		WithAvatarService(stubAvatars{}).
		WithAuditSink(env.audit).
		WithClock(env.clock.Now).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	env.engine = engine

	t.Cleanup(func() {
		engine.Close()
		rdb.Close()
		mr.Close()
	})
	return env
}

// tokenFromMail extracts the recovery token following marker in the newest
// mail to recipient.
func (env *testEnv) tokenFromMail(t *testing.T, recipient, marker string) string {
	t.Helper()
	msg, ok := env.outbox.Last(recipient)
	if !ok {
		t.Fatalf("no mail sent to %s", recipient)
	}
	_, rest, found := strings.Cut(msg.Text, marker)
	if !found {
		t.Fatalf("mail %q has no %q link", msg.Subject, marker)
	}
	token, _, _ := strings.Cut(rest, "\n")
	return strings.TrimSpace(token)
}

func (env *testEnv) verificationToken(t *testing.T, recipient string) string {
	return env.tokenFromMail(t, recipient, "/api/users/verify/")
}

func (env *testEnv) resetToken(t *testing.T, recipient string) string {
	return env.tokenFromMail(t, recipient, "/reset-password?token=")
}

// signupVerified creates and verifies an account.
func (env *testEnv) signupVerified(t *testing.T, email, pass string) {
	t.Helper()
	ctx := context.Background()
	if _, err := env.engine.Signup(ctx, phonebook.SignupInput{Email: email, Password: pass}); err != nil {
		t.Fatalf("Signup failed: %v", err)
	}
	if err := env.engine.VerifyEmail(ctx, env.verificationToken(t, email)); err != nil {
		t.Fatalf("VerifyEmail failed: %v", err)
	}
}

func (env *testEnv) userID(t *testing.T, email string) string {
	t.Helper()
	u, err := env.users.ByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("ByEmail(%s): %v", email, err)
	}
	return u.ID
}

type stubAvatars struct{}

func (stubAvatars) Default(email string) string {
	return "https://gravatar.test/" + email
}

func (stubAvatars) Save(_ context.Context, userID string, src io.Reader, filename string) (string, error) {
	return "/avatars/" + userID + ".png", nil
}
