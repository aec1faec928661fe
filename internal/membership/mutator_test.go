package membership

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/makhammatovb/telegram-group-manager/internal/telegram"
)

// Mock client recording the order of per-group operations.
type mockClient struct {
	userErr   error
	groupErrs map[string]error // resolve failures by group username
	opErrs    map[string]error // invite/remove failures by group username

	attempted []string
}

func (m *mockClient) ResolveUser(ctx context.Context, username string) (*telegram.User, error) {
	if m.userErr != nil {
		return nil, m.userErr
	}
	return &telegram.User{ID: 42, AccessHash: 7, Username: username}, nil
}

func (m *mockClient) ResolveChannel(ctx context.Context, username string) (*telegram.Channel, error) {
	if err, ok := m.groupErrs[username]; ok {
		return nil, err
	}
	return &telegram.Channel{ID: 100, AccessHash: 8, Title: username, Username: username, Megagroup: true}, nil
}

func (m *mockClient) InviteUser(ctx context.Context, channel *telegram.Channel, user *telegram.User) error {
	m.attempted = append(m.attempted, channel.Username)
	return m.opErrs[channel.Username]
}

func (m *mockClient) RemoveUser(ctx context.Context, channel *telegram.Channel, user *telegram.User) error {
	m.attempted = append(m.attempted, channel.Username)
	return m.opErrs[channel.Username]
}

type fakeSleeper struct {
	slept []time.Duration
}

func (f *fakeSleeper) sleep(d time.Duration) {
	f.slept = append(f.slept, d)
}

func newTestMutator(client *mockClient) (*Mutator, *fakeSleeper) {
	logger := logrus.New()
	logger.SetLevel(logrus.FatalLevel) // Reduce log noise during tests

	m := NewMutator(client, 30*time.Second, logger)
	sleeper := &fakeSleeper{}
	m.sleep = sleeper.sleep
	return m, sleeper
}

func TestInviteUserNotFoundAbortsBeforeGroups(t *testing.T) {
	client := &mockClient{userErr: telegram.ErrNotFound}
	mutator, _ := newTestMutator(client)

	err := mutator.InviteUserToGroups(context.Background(), "ghost", []string{"g1", "g2"})

	var notFound *UserNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("Expected UserNotFoundError, got %v", err)
	}
	if notFound.Username != "ghost" {
		t.Errorf("Expected username 'ghost', got %q", notFound.Username)
	}
	if len(client.attempted) != 0 {
		t.Errorf("No group may be attempted when the user is unknown, got %v", client.attempted)
	}
}

func TestInviteSuccessProcessesAllGroupsInOrder(t *testing.T) {
	client := &mockClient{}
	mutator, sleeper := newTestMutator(client)

	err := mutator.InviteUserToGroups(context.Background(), "alice", []string{"g1", "g2", "g3"})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}

	want := []string{"g1", "g2", "g3"}
	if len(client.attempted) != len(want) {
		t.Fatalf("Expected %v attempted, got %v", want, client.attempted)
	}
	for i, g := range want {
		if client.attempted[i] != g {
			t.Errorf("Expected group %s at position %d, got %s", g, i, client.attempted[i])
		}
	}

	// One 30s pacing sleep per group.
	if len(sleeper.slept) != 3 {
		t.Fatalf("Expected 3 pacing sleeps, got %d", len(sleeper.slept))
	}
	for _, d := range sleeper.slept {
		if d != 30*time.Second {
			t.Errorf("Expected 30s pacing sleep, got %v", d)
		}
	}
}

func TestInviteAbortPolicy(t *testing.T) {
	tests := []struct {
		name   string
		g2Err  error
		target error
	}{
		{
			name:   "privacy restriction aborts the batch",
			g2Err:  telegram.ErrPrivacyRestricted,
			target: telegram.ErrPrivacyRestricted,
		},
		{
			name:   "missing admin rights abort the batch",
			g2Err:  telegram.ErrAdminRequired,
			target: telegram.ErrAdminRequired,
		},
		{
			name:  "generic failure aborts the batch",
			g2Err: fmt.Errorf("peer id invalid"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &mockClient{opErrs: map[string]error{"g2": tt.g2Err}}
			mutator, _ := newTestMutator(client)

			err := mutator.InviteUserToGroups(context.Background(), "alice", []string{"g1", "g2", "g3"})

			var batchErr *BatchError
			if !errors.As(err, &batchErr) {
				t.Fatalf("Expected BatchError, got %v", err)
			}
			if batchErr.Group != "g2" {
				t.Errorf("Expected abort at g2, got %s", batchErr.Group)
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("Expected %v in chain, got %v", tt.target, err)
			}

			// g1 processed, g2 attempted, g3 never reached.
			want := []string{"g1", "g2"}
			if len(client.attempted) != len(want) {
				t.Fatalf("Expected attempts %v, got %v", want, client.attempted)
			}
		})
	}
}

func TestInviteFloodWaitContinuesWithNextGroup(t *testing.T) {
	client := &mockClient{opErrs: map[string]error{"g1": &telegram.FloodWaitError{Seconds: 17}}}
	mutator, sleeper := newTestMutator(client)

	err := mutator.InviteUserToGroups(context.Background(), "alice", []string{"g1", "g2"})
	if err != nil {
		t.Fatalf("Flood wait must not abort the batch, got %v", err)
	}

	// g1 attempted once (never retried), then g2.
	want := []string{"g1", "g2"}
	if len(client.attempted) != len(want) || client.attempted[0] != "g1" || client.attempted[1] != "g2" {
		t.Fatalf("Expected attempts %v, got %v", want, client.attempted)
	}

	// Flood sleep for g1, pacing sleep after g2.
	if len(sleeper.slept) != 2 {
		t.Fatalf("Expected 2 sleeps, got %v", sleeper.slept)
	}
	if sleeper.slept[0] != 17*time.Second {
		t.Errorf("Expected 17s flood sleep, got %v", sleeper.slept[0])
	}
	if sleeper.slept[1] != 30*time.Second {
		t.Errorf("Expected 30s pacing sleep, got %v", sleeper.slept[1])
	}
}

func TestFloodWaitOnResolveContinues(t *testing.T) {
	client := &mockClient{groupErrs: map[string]error{"g1": &telegram.FloodWaitError{Seconds: 5}}}
	mutator, sleeper := newTestMutator(client)

	err := mutator.InviteUserToGroups(context.Background(), "alice", []string{"g1", "g2"})
	if err != nil {
		t.Fatalf("Flood wait on resolution must not abort the batch, got %v", err)
	}

	// g1 never got past resolution.
	if len(client.attempted) != 1 || client.attempted[0] != "g2" {
		t.Fatalf("Expected only g2 attempted, got %v", client.attempted)
	}
	if len(sleeper.slept) == 0 || sleeper.slept[0] != 5*time.Second {
		t.Errorf("Expected 5s flood sleep first, got %v", sleeper.slept)
	}
}

func TestGroupResolutionFailureAbortsBatch(t *testing.T) {
	client := &mockClient{groupErrs: map[string]error{"g2": telegram.ErrNotFound}}
	mutator, _ := newTestMutator(client)

	err := mutator.InviteUserToGroups(context.Background(), "alice", []string{"g1", "g2", "g3"})

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("Expected BatchError, got %v", err)
	}
	if batchErr.Group != "g2" {
		t.Errorf("Expected abort at g2, got %s", batchErr.Group)
	}
	if len(client.attempted) != 1 || client.attempted[0] != "g1" {
		t.Errorf("Expected only g1 attempted, got %v", client.attempted)
	}
}

func TestRemoveSharesTheBatchAlgorithm(t *testing.T) {
	client := &mockClient{opErrs: map[string]error{"g1": telegram.ErrAdminRequired}}
	mutator, _ := newTestMutator(client)

	err := mutator.RemoveUserFromGroups(context.Background(), "bob", []string{"g1", "g2"})

	var batchErr *BatchError
	if !errors.As(err, &batchErr) {
		t.Fatalf("Expected BatchError, got %v", err)
	}
	if !errors.Is(err, telegram.ErrAdminRequired) {
		t.Errorf("Expected admin error in chain, got %v", err)
	}
	if len(client.attempted) != 1 {
		t.Errorf("Expected batch to stop at g1, got %v", client.attempted)
	}
}
