package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/codetrial/broker-backend-go/internal/domain/invitation"
	"github.com/codetrial/broker-backend-go/internal/domain/seed"
	"github.com/codetrial/broker-backend-go/internal/pkg/github"
	"github.com/codetrial/broker-backend-go/internal/pkg/opaque"
	"github.com/codetrial/broker-backend-go/internal/repository/memory"
	"github.com/codetrial/broker-backend-go/internal/service/broker"
	"github.com/codetrial/broker-backend-go/internal/service/catalog"
	"github.com/codetrial/broker-backend-go/internal/service/provisioner"
	"github.com/codetrial/broker-backend-go/internal/service/tokenstore"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubUpstream struct{}

func (stubUpstream) BranchHeadSHA(context.Context, string, string) (string, error) {
	return "cafecafecafecafecafecafecafecafecafecafe", nil
}

func (stubUpstream) CreateFromTemplate(_ context.Context, _, name, _ string) (github.Repository, error) {
	return github.Repository{
		ID:       1,
		FullName: "acme-hiring/" + name,
		HTMLURL:  "https://github.example/acme-hiring/" + name,
	}, nil
}

func (stubUpstream) GetRepository(_ context.Context, fullName string) (github.Repository, error) {
	return github.Repository{FullName: fullName}, nil
}

type stubAuthority struct{}

func (stubAuthority) RepositoryToken(_ context.Context, repoFullName string, _ map[string]string) (string, time.Time, error) {
	return "ghs_live_" + repoFullName, time.Now().Add(time.Hour), nil
}

type testServer struct {
	srv        *httptest.Server
	ja         *jwtauth.JWTAuth
	adminToken string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	logger := slog.New(slog.DiscardHandler)
	hasher := opaque.NewHasher("router-test-key")

	seeds := memory.NewSeedRepository()
	assessments := memory.NewAssessmentRepository()
	repos := memory.NewCandidateRepoRepository()

	prov := provisioner.NewService(stubUpstream{}, repos, provisioner.Config{
		Organization:    "acme-hiring",
		CandidatePrefix: "candidate",
		PinFromCache:    true,
	}, logger)

	brokerSvc := broker.NewService(broker.Deps{
		Invitations: memory.NewInvitationRepository(),
		Repos:       repos,
		Submissions: memory.NewSubmissionRepository(),
		Assessments: assessments,
		Seeds:       seeds,
		Provisioner: prov,
		Tokens:      tokenstore.NewService(memory.NewTokenRepository(), hasher),
		Authority:   stubAuthority{},
		Tx:          memory.NewTxManager(),
		Hasher:      hasher,
		Logger:      logger,
	})

	ja := jwtauth.New("HS256", []byte("router-test-secret"), nil)
	_, adminToken, err := ja.Encode(map[string]interface{}{"sub": "admin", "is_admin": true})
	require.NoError(t, err)

	router := NewRouter(logger, ja, Handlers{
		Candidate:  NewCandidateHandler(brokerSvc),
		Credential: NewCredentialHandler(brokerSvc),
		Seed:       NewSeedHandler(catalog.NewSeedService(seeds, stubUpstream{}, logger)),
		Assessment: NewAssessmentHandler(catalog.NewAssessmentService(assessments, seeds, logger)),
		Invitation: NewInvitationHandler(brokerSvc),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{srv: srv, ja: ja, adminToken: adminToken}
}

func (ts *testServer) do(t *testing.T, method, path, bearer string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.srv.URL+path, payload)
	require.NoError(t, err)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var envelope map[string]json.RawMessage
	_ = json.NewDecoder(resp.Body).Decode(&envelope)
	return resp, envelope
}

func decodeData[T any](t *testing.T, envelope map[string]json.RawMessage) T {
	t.Helper()
	var v T
	require.Contains(t, envelope, "data")
	require.NoError(t, json.Unmarshal(envelope["data"], &v))
	return v
}

func errorCode(t *testing.T, envelope map[string]json.RawMessage) string {
	t.Helper()
	var detail struct {
		Code string `json:"code"`
	}
	require.Contains(t, envelope, "error")
	require.NoError(t, json.Unmarshal(envelope["error"], &detail))
	return detail.Code
}

// seedCatalog registers a seed and an assessment through the admin API
// and returns the assessment id.
func (ts *testServer) seedCatalog(t *testing.T) string {
	t.Helper()

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/seeds", ts.adminToken, map[string]any{
		"source_repo_url":     "https://github.example/acme-hiring/seed-backend",
		"seed_repo_full_name": "acme-hiring/seed-backend",
		"default_branch":      "main",
		"is_template":         true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	sd := decodeData[seed.Seed](t, envelope)

	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/assessments", ts.adminToken, map[string]any{
		"seed_id":          sd.ID,
		"title":            "Backend take-home",
		"time_to_start":    "72h",
		"time_to_complete": "4h",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var a struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(envelope["data"], &a))
	return a.ID
}

func (ts *testServer) inviteCandidate(t *testing.T, assessmentID string) invitation.CreateResponse {
	t.Helper()
	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/invitations", ts.adminToken, map[string]any{
		"assessment_id":   assessmentID,
		"candidate_email": "jane.doe@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decodeData[invitation.CreateResponse](t, envelope)
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/api/v1/seeds", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// A valid token without the admin claim is forbidden.
	_, userToken, err := ts.ja.Encode(map[string]interface{}{"sub": "someone"})
	require.NoError(t, err)
	resp, _ = ts.do(t, http.MethodGet, "/api/v1/seeds", userToken, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestCandidateFlowOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	assessmentID := ts.seedCatalog(t)
	created := ts.inviteCandidate(t, assessmentID)

	require.NotEmpty(t, created.StartLinkToken)
	assert.Equal(t, invitation.StatusSent, created.Invitation.Status)

	// Start page promotes sent to accepted.
	resp, envelope := ts.do(t, http.MethodGet, "/api/v1/start/"+created.StartLinkToken, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	info := decodeData[invitation.StartInfoResponse](t, envelope)
	assert.Equal(t, invitation.StatusAccepted, info.Status)
	assert.Equal(t, "Backend take-home", info.AssessmentTitle)

	// Start provisions and returns the access token.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/start/"+created.StartLinkToken, "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	started := decodeData[invitation.StartResponse](t, envelope)
	assert.Equal(t, invitation.StatusStarted, started.Status)
	assert.NotEmpty(t, started.AccessToken)
	assert.Regexp(t, `^acme-hiring/candidate-jane-doe-[0-9a-f]{6}$`, started.CandidateRepo.RepoFullName)

	// Credential helper exchanges the opaque token.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/credentials/exchange", started.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	cred := decodeData[invitation.CredentialResponse](t, envelope)
	assert.Equal(t, "x-access-token", cred.Username)
	assert.Equal(t, "ghs_live_"+started.CandidateRepo.RepoFullName, cred.Password)

	// Submit finishes the attempt.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/submit/"+created.StartLinkToken, "", map[string]any{
		"final_sha": "beefbeefbeefbeefbeefbeefbeefbeefbeefbeef",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	submitted := decodeData[invitation.SubmitResponse](t, envelope)
	assert.Equal(t, invitation.StatusSubmitted, submitted.Status)

	// The token died with the submission.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/credentials/exchange", started.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "TOKEN_INVALID", errorCode(t, envelope))

	// And submit is not repeatable.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/submit/"+created.StartLinkToken, "", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "ALREADY_SUBMITTED", errorCode(t, envelope))
}

func TestStartUnknownToken(t *testing.T) {
	ts := newTestServer(t)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/start/bogus-token", "", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", errorCode(t, envelope))
}

func TestInvitationResponseNeverLeaksHash(t *testing.T) {
	ts := newTestServer(t)
	assessmentID := ts.seedCatalog(t)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/invitations", ts.adminToken, map[string]any{
		"assessment_id":   assessmentID,
		"candidate_email": "jane.doe@example.com",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotContains(t, string(envelope["data"]), "token_hash")
}

func TestInvitationRevokeOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	assessmentID := ts.seedCatalog(t)
	created := ts.inviteCandidate(t, assessmentID)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/invitations/"+created.Invitation.ID+"/revoke", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	inv := decodeData[invitation.Invitation](t, envelope)
	assert.Equal(t, invitation.StatusRevoked, inv.Status)

	// Revoked invitations cannot start.
	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/start/"+created.StartLinkToken, "", nil)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "INVALID_TRANSITION", errorCode(t, envelope))
}

func TestSubmitValidation(t *testing.T) {
	ts := newTestServer(t)
	assessmentID := ts.seedCatalog(t)
	created := ts.inviteCandidate(t, assessmentID)

	_, _ = ts.do(t, http.MethodPost, "/api/v1/start/"+created.StartLinkToken, "", nil)

	resp, envelope := ts.do(t, http.MethodPost, "/api/v1/submit/"+created.StartLinkToken, "", map[string]any{
		"final_sha": "not-a-sha",
	})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, "VALIDATION_ERROR", errorCode(t, envelope))
}

func TestUnsupportedContentTypeRejected(t *testing.T) {
	ts := newTestServer(t)
	assessmentID := ts.seedCatalog(t)
	created := ts.inviteCandidate(t, assessmentID)

	req, err := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/v1/submit/"+created.StartLinkToken,
		strings.NewReader("final_sha=abc"))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)

	// JSON bodies pass the content-type filter.
	resp2, _ := ts.do(t, http.MethodPost, "/api/v1/submit/"+created.StartLinkToken, "", map[string]any{})
	assert.NotEqual(t, http.StatusUnsupportedMediaType, resp2.StatusCode)
}

func TestSeedRefreshSHAOverHTTP(t *testing.T) {
	ts := newTestServer(t)
	assessmentID := ts.seedCatalog(t)
	_ = assessmentID

	resp, envelope := ts.do(t, http.MethodGet, "/api/v1/seeds", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	seeds := decodeData[[]seed.Seed](t, envelope)
	require.Len(t, seeds, 1)

	resp, envelope = ts.do(t, http.MethodPost, "/api/v1/seeds/"+seeds[0].ID+"/refresh-sha", ts.adminToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	refreshed := decodeData[seed.Seed](t, envelope)
	require.NotNil(t, refreshed.LatestMainSHA)
	assert.Equal(t, "cafecafecafecafecafecafecafecafecafecafe", *refreshed.LatestMainSHA)
}
