package broker

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/codetrial/broker-backend-go/internal/domain/accesstoken"
	"github.com/codetrial/broker-backend-go/internal/domain/assessment"
	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/domain/seed"
	"github.com/codetrial/broker-backend-go/internal/pkg/opaque"
	"github.com/codetrial/broker-backend-go/internal/repository/memory"
	"github.com/codetrial/broker-backend-go/internal/service/tokenstore"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProvisioner struct {
	repos invitation.CandidateRepoRepository
	calls atomic.Int64
	err   error
}

func (f *fakeProvisioner) Provision(ctx context.Context, inv invitation.Invitation, sd seed.Seed) (invitation.CandidateRepo, error) {
	f.calls.Add(1)
	if f.err != nil {
		return invitation.CandidateRepo{}, f.err
	}
	url := "https://github.example/acme-hiring/candidate-" + inv.ID
	return f.repos.Create(ctx, invitation.CandidateRepo{
		ID:            uuid.New().String(),
		InvitationID:  inv.ID,
		RepoFullName:  "acme-hiring/candidate-" + inv.ID,
		RepoHTMLURL:   &url,
		SeedSHAPinned: "cafecafecafecafecafecafecafecafecafecafe",
	})
}

type fakeAuthority struct {
	err   error
	perms map[string]string

	// When set, a mint signals inFlight and then blocks until gate is
	// closed, letting tests interleave other calls with a slow upstream.
	gate     chan struct{}
	inFlight chan struct{}
}

func (f *fakeAuthority) RepositoryToken(_ context.Context, repoFullName string, permissions map[string]string) (string, time.Time, error) {
	if f.inFlight != nil {
		f.inFlight <- struct{}{}
	}
	if f.gate != nil {
		<-f.gate
	}
	if f.err != nil {
		return "", time.Time{}, f.err
	}
	f.perms = permissions
	return "ghs_live_" + repoFullName, time.Now().Add(time.Hour), nil
}

type fixture struct {
	svc         invitation.BrokerService
	invitations invitation.InvitationRepository
	tokens      accesstoken.TokenStore
	provisioner *fakeProvisioner
	authority   *fakeAuthority
	assessment  assessment.Assessment
}

func newFixture(t *testing.T, timeToStart, timeToComplete time.Duration) *fixture {
	t.Helper()

	invitations := memory.NewInvitationRepository()
	repos := memory.NewCandidateRepoRepository()
	seeds := memory.NewSeedRepository()
	assessments := memory.NewAssessmentRepository()
	hasher := opaque.NewHasher("unit-test-hash-key")
	tokens := tokenstore.NewService(memory.NewTokenRepository(), hasher)

	sd, err := seeds.Create(t.Context(), seed.Seed{
		ID:               uuid.New().String(),
		SeedRepoFullName: "acme-hiring/seed-backend",
		DefaultBranch:    "main",
		IsTemplate:       true,
	})
	require.NoError(t, err)

	a, err := assessments.Create(t.Context(), assessment.Assessment{
		ID:             uuid.New().String(),
		SeedID:         sd.ID,
		Title:          "Backend take-home",
		TimeToStart:    timeToStart,
		TimeToComplete: timeToComplete,
	})
	require.NoError(t, err)

	prov := &fakeProvisioner{repos: repos}
	auth := &fakeAuthority{}

	svc := NewService(Deps{
		Invitations: invitations,
		Repos:       repos,
		Submissions: memory.NewSubmissionRepository(),
		Assessments: assessments,
		Seeds:       seeds,
		Provisioner: prov,
		Tokens:      tokens,
		Authority:   auth,
		Tx:          memory.NewTxManager(),
		Hasher:      hasher,
		Logger:      slog.New(slog.DiscardHandler),
	})

	return &fixture{
		svc:         svc,
		invitations: invitations,
		tokens:      tokens,
		provisioner: prov,
		authority:   auth,
		assessment:  a,
	}
}

func (f *fixture) invite(t *testing.T) invitation.CreateResponse {
	t.Helper()
	resp, err := f.svc.CreateAndIssue(t.Context(), invitation.CreateRequest{
		AssessmentID:   f.assessment.ID,
		CandidateEmail: "jane.doe@example.com",
	})
	require.NoError(t, err)
	return resp
}

func TestCreateAndIssue(t *testing.T) {
	f := newFixture(t, 72*time.Hour, 4*time.Hour)

	resp := f.invite(t)

	assert.NotEmpty(t, resp.StartLinkToken)
	assert.Equal(t, invitation.StatusSent, resp.Invitation.Status)
	assert.NotEqual(t, resp.StartLinkToken, resp.Invitation.StartLinkTokenHash)
	assert.Equal(t, resp.Invitation.SentAt.Add(72*time.Hour), resp.Invitation.StartDeadline)
	assert.Nil(t, resp.Invitation.CompleteDeadline)
}

func TestCreateAndIssueValidation(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)

	_, err := f.svc.CreateAndIssue(t.Context(), invitation.CreateRequest{
		AssessmentID:   "not-a-uuid",
		CandidateEmail: "not-an-email",
	})
	assert.Error(t, err)

	_, err = f.svc.CreateAndIssue(t.Context(), invitation.CreateRequest{
		AssessmentID:   uuid.New().String(),
		CandidateEmail: "jane@example.com",
	})
	assert.ErrorIs(t, err, assessment.ErrAssessmentNotFound)
}

func TestStartInfoPromotesSentToAccepted(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)
	created := f.invite(t)

	info, err := f.svc.StartInfo(t.Context(), created.StartLinkToken)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusAccepted, info.Status)
	assert.Equal(t, "Backend take-home", info.AssessmentTitle)
	assert.Nil(t, info.CandidateRepo)

	// Re-opening the page is a no-op.
	info, err = f.svc.StartInfo(t.Context(), created.StartLinkToken)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusAccepted, info.Status)
}

func TestStartInfoUnknownToken(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)

	_, err := f.svc.StartInfo(t.Context(), "bogus")
	assert.ErrorIs(t, err, invitation.ErrInvitationNotFound)
}

func TestStartInfoPastDeadlineShowsExpired(t *testing.T) {
	f := newFixture(t, -time.Minute, time.Hour)
	created := f.invite(t)

	info, err := f.svc.StartInfo(t.Context(), created.StartLinkToken)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusExpired, info.Status)
}

func TestStartProvisionsAndMints(t *testing.T) {
	f := newFixture(t, time.Hour, 4*time.Hour)
	created := f.invite(t)

	resp, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)

	assert.Equal(t, invitation.StatusStarted, resp.Status)
	assert.Equal(t, resp.StartedAt.Add(4*time.Hour), resp.CompleteDeadline)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "cafecafecafecafecafecafecafecafecafecafe", resp.CandidateRepo.SeedSHAPinned)

	tok, err := f.tokens.Validate(t.Context(), resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.InvitationID, tok.InvitationID)
	assert.Equal(t, accesstoken.ScopeClonePush, tok.Scope)
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFixture(t, time.Hour, 4*time.Hour)
	created := f.invite(t)

	first, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)
	second, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)

	assert.Equal(t, first.CandidateRepo.RepoFullName, second.CandidateRepo.RepoFullName)
	assert.Equal(t, first.CompleteDeadline.Unix(), second.CompleteDeadline.Unix())
	assert.NotEqual(t, first.AccessToken, second.AccessToken, "re-entry mints a fresh token")
	assert.Equal(t, int64(1), f.provisioner.calls.Load())

	// Both tokens stay valid until submit or expiry.
	_, err = f.tokens.Validate(t.Context(), first.AccessToken)
	assert.NoError(t, err)
	_, err = f.tokens.Validate(t.Context(), second.AccessToken)
	assert.NoError(t, err)
}

func TestStartConcurrentCallersProvisionOnce(t *testing.T) {
	f := newFixture(t, time.Hour, 4*time.Hour)
	created := f.invite(t)

	const n = 12
	var wg sync.WaitGroup
	responses := make([]invitation.StartResponse, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			responses[i], errs[i] = f.svc.Start(context.Background(), created.StartLinkToken)
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, responses[0].CandidateRepo.RepoFullName, responses[i].CandidateRepo.RepoFullName)
	}
	assert.Equal(t, int64(1), f.provisioner.calls.Load())
}

func TestStartAfterDeadline(t *testing.T) {
	f := newFixture(t, -time.Minute, time.Hour)
	created := f.invite(t)

	_, err := f.svc.Start(t.Context(), created.StartLinkToken)
	assert.ErrorIs(t, err, invitation.ErrDeadlineExceeded)

	inv, err := f.svc.GetByID(t.Context(), created.Invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusExpired, inv.Status)
	assert.Equal(t, int64(0), f.provisioner.calls.Load())
}

func TestStartFailedProvisionLeavesInvitationStartable(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)
	created := f.invite(t)

	f.provisioner.err = invitation.ErrProvisioningUnavailable
	_, err := f.svc.Start(t.Context(), created.StartLinkToken)
	assert.ErrorIs(t, err, invitation.ErrProvisioningUnavailable)

	inv, err := f.svc.GetByID(t.Context(), created.Invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusSent, inv.Status)

	f.provisioner.err = nil
	resp, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusStarted, resp.Status)
}

func TestSubmitRecordsAndRevokes(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)
	created := f.invite(t)

	started, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)

	resp, err := f.svc.Submit(t.Context(), created.StartLinkToken, invitation.SubmitRequest{
		FinalSHA: "beefbeefbeefbeefbeefbeefbeefbeefbeefbeef",
	})
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusSubmitted, resp.Status)
	assert.Equal(t, "beefbeefbeefbeefbeefbeefbeefbeefbeefbeef", resp.FinalSHA)

	_, err = f.tokens.Validate(t.Context(), started.AccessToken)
	assert.ErrorIs(t, err, accesstoken.ErrTokenRevoked)

	_, err = f.svc.Submit(t.Context(), created.StartLinkToken, invitation.SubmitRequest{})
	assert.ErrorIs(t, err, invitation.ErrAlreadySubmitted)
}

func TestSubmitWithoutFinalSHAFallsBackToPin(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)
	created := f.invite(t)

	_, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)

	resp, err := f.svc.Submit(t.Context(), created.StartLinkToken, invitation.SubmitRequest{})
	require.NoError(t, err)
	assert.Equal(t, "cafecafecafecafecafecafecafecafecafecafe", resp.FinalSHA)
}

func TestSubmitBeforeStart(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)
	created := f.invite(t)

	_, err := f.svc.Submit(t.Context(), created.StartLinkToken, invitation.SubmitRequest{})
	assert.ErrorIs(t, err, invitation.ErrInvalidTransition)
}

func TestSubmitAfterCompleteDeadline(t *testing.T) {
	f := newFixture(t, time.Hour, time.Millisecond)
	created := f.invite(t)

	started, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	_, err = f.svc.Submit(t.Context(), created.StartLinkToken, invitation.SubmitRequest{})
	assert.ErrorIs(t, err, invitation.ErrDeadlineExceeded)

	inv, err := f.svc.GetByID(t.Context(), created.Invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusExpired, inv.Status)

	_, err = f.tokens.Validate(t.Context(), started.AccessToken)
	assert.ErrorIs(t, err, accesstoken.ErrTokenInvalid)
}

func TestExchangeCredential(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)
	created := f.invite(t)

	started, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)

	cred, err := f.svc.ExchangeCredential(t.Context(), started.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "x-access-token", cred.Username)
	assert.Equal(t, "ghs_live_"+started.CandidateRepo.RepoFullName, cred.Password)
	assert.Equal(t, started.CandidateRepo.RepoFullName, cred.RepoFullName)
	assert.Equal(t, map[string]string{"contents": "write", "metadata": "read"}, f.authority.perms)

	// Clipped to the opaque token's expiry, which is the earlier one here.
	assert.False(t, cred.ExpiresAt.After(started.AccessTokenExpiresAt))
}

func TestExchangeCredentialUnknownToken(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)

	_, err := f.svc.ExchangeCredential(t.Context(), "bogus")
	assert.ErrorIs(t, err, accesstoken.ErrTokenInvalid)
}

func TestExchangeCredentialAfterSubmit(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)
	created := f.invite(t)

	started, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)
	_, err = f.svc.Submit(t.Context(), created.StartLinkToken, invitation.SubmitRequest{})
	require.NoError(t, err)

	_, err = f.svc.ExchangeCredential(t.Context(), started.AccessToken)
	assert.ErrorIs(t, err, accesstoken.ErrTokenRevoked)
}

func TestExchangeCredentialExpiresOverdueInvitation(t *testing.T) {
	f := newFixture(t, time.Hour, 50*time.Millisecond)
	created := f.invite(t)

	started, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)

	time.Sleep(60 * time.Millisecond)

	_, err = f.svc.ExchangeCredential(t.Context(), started.AccessToken)
	assert.ErrorIs(t, err, accesstoken.ErrTokenInvalid)

	inv, err := f.svc.GetByID(t.Context(), created.Invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusExpired, inv.Status)
}

func TestExchangeCredentialAuthorityDown(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)
	created := f.invite(t)

	started, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)

	f.authority.err = invitation.ErrProvisioningUnavailable
	_, err = f.svc.ExchangeCredential(t.Context(), started.AccessToken)
	assert.Error(t, err)

	// The opaque token survives an authority outage.
	f.authority.err = nil
	_, err = f.svc.ExchangeCredential(t.Context(), started.AccessToken)
	assert.NoError(t, err)
}

func TestExchangeCredentialRevokedDuringMint(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)
	created := f.invite(t)
	ctx := t.Context()

	started, err := f.svc.Start(ctx, created.StartLinkToken)
	require.NoError(t, err)

	f.authority.gate = make(chan struct{})
	f.authority.inFlight = make(chan struct{}, 1)

	result := make(chan error, 1)
	go func() {
		_, err := f.svc.ExchangeCredential(ctx, started.AccessToken)
		result <- err
	}()

	// Revoke commits while the upstream mint is still in flight; the
	// minted credential must not reach the caller.
	<-f.authority.inFlight
	require.NoError(t, f.svc.Revoke(ctx, started.InvitationID))
	close(f.authority.gate)

	assert.ErrorIs(t, <-result, accesstoken.ErrTokenRevoked)
}

func TestRevoke(t *testing.T) {
	f := newFixture(t, time.Hour, time.Hour)
	created := f.invite(t)

	started, err := f.svc.Start(t.Context(), created.StartLinkToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Revoke(t.Context(), created.Invitation.ID))

	inv, err := f.svc.GetByID(t.Context(), created.Invitation.ID)
	require.NoError(t, err)
	assert.Equal(t, invitation.StatusRevoked, inv.Status)

	_, err = f.tokens.Validate(t.Context(), started.AccessToken)
	assert.ErrorIs(t, err, accesstoken.ErrTokenRevoked)

	assert.ErrorIs(t, f.svc.Revoke(t.Context(), created.Invitation.ID), invitation.ErrInvalidTransition)
}

func TestExpireOverdueSweep(t *testing.T) {
	f := newFixture(t, -time.Minute, time.Hour)

	first := f.invite(t)
	second := f.invite(t)

	count, err := f.svc.ExpireOverdue(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	for _, id := range []string{first.Invitation.ID, second.Invitation.ID} {
		inv, err := f.svc.GetByID(t.Context(), id)
		require.NoError(t, err)
		assert.Equal(t, invitation.StatusExpired, inv.Status)
	}

	// Second sweep finds nothing.
	count, err = f.svc.ExpireOverdue(t.Context())
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}
