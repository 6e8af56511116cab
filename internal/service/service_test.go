package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"civicportal/internal/config"
	"civicportal/internal/kv/kvtest"
	"civicportal/internal/models"
	"civicportal/internal/notify"
	"civicportal/internal/repository"
	"civicportal/internal/storage"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Message
}

func (n *recordingNotifier) Notify(_ context.Context, msg notify.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) kinds() []notify.Kind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.Kind, 0, len(n.sent))
	for _, m := range n.sent {
		out = append(out, m.Kind)
	}
	return out
}

type recordingArchive struct {
	dossiers []storage.Dossier
}

func (a *recordingArchive) Archive(_ context.Context, d storage.Dossier) (string, error) {
	a.dossiers = append(a.dossiers, d)
	return storage.ObjectKey(d), nil
}

func testConfig() *config.AppConfig {
	return &config.AppConfig{
		Security: config.SecurityConfig{
			SessionTTL:  time.Hour,
			CookieName:  "session_id",
			StateSecret: "state-secret",
			StateTTL:    10 * time.Minute,
		},
		Notify: config.NotifyConfig{
			LawmakerAddress: "lawmakers@congress.example",
			From:            "no-reply@portal.example",
			PlatformName:    "Test Portal",
		},
	}
}

type harness struct {
	svc      *Services
	notifier *recordingNotifier
	archive  *recordingArchive
}

func newHarness(t *testing.T) harness {
	t.Helper()
	h := harness{notifier: &recordingNotifier{}, archive: &recordingArchive{}}
	h.svc = New(testConfig(), kvtest.NewRedisStore(t), h.notifier, h.archive, zerolog.Nop())
	return h
}

// user creates a user and applies the given flags.
func (h harness) user(t *testing.T, email string, patch models.UserPatch) models.User {
	t.Helper()
	ctx := context.Background()
	u, err := h.svc.Users.Create(ctx, repository.NewUser{Email: email, Name: "Test " + email})
	if err != nil {
		t.Fatal(err)
	}
	u, err = h.svc.Users.Update(ctx, u.ID, patch)
	if err != nil {
		t.Fatal(err)
	}
	return u
}

func boolPtr(b bool) *bool {
	return &b
}
