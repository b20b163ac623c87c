package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/require"

	"github.com/phonologic/brain-engine/pkg/auth"
	"github.com/phonologic/brain-engine/pkg/models"
	"github.com/phonologic/brain-engine/pkg/services"
)

// mockCurationService implements services.CurationService for testing.
type mockCurationService struct {
	result    *services.ContributeResult
	err       error
	lastText  string
	lastActor string
}

func (m *mockCurationService) Contribute(ctx context.Context, text, submittedBy string) (*services.ContributeResult, error) {
	m.lastText = text
	m.lastActor = submittedBy
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

// mockQueryService implements services.QueryService for testing.
type mockQueryService struct {
	answer       *services.QueryAnswer
	err          error
	lastQuestion string
	lastCategory *models.Category
}

func (m *mockQueryService) Answer(ctx context.Context, question string, category *models.Category) (*services.QueryAnswer, error) {
	m.lastQuestion = question
	m.lastCategory = category
	if m.err != nil {
		return nil, m.err
	}
	return m.answer, nil
}

// mockStagingService implements services.StagingService for testing.
type mockStagingService struct {
	pending []*models.Contribution
	err     error
}

func (m *mockStagingService) Stage(ctx context.Context, rawInput, submittedBy string, claims []models.Claim, conflicts []models.Conflict) (*models.Contribution, error) {
	return nil, nil
}

func (m *mockStagingService) ListPending(ctx context.Context) ([]*models.Contribution, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.pending, nil
}

func (m *mockStagingService) Expire(ctx context.Context) ([]uuid.UUID, error) {
	return nil, nil
}

// mockResolutionService implements services.ResolutionService for testing.
type mockResolutionService struct {
	result     *services.ResolutionResult
	err        error
	lastID     uuid.UUID
	lastAction string
	lastActor  string
}

func (m *mockResolutionService) Resolve(ctx context.Context, id uuid.UUID, action, resolvedBy string) (*services.ResolutionResult, error) {
	m.lastID = id
	m.lastAction = action
	m.lastActor = resolvedBy
	// Both can be set: a stale failure still carries per-field outcomes.
	return m.result, m.err
}

// mockKnowledgeRepo implements repositories.KnowledgeRepository for the
// browsing tools, which only read.
type mockKnowledgeRepo struct {
	entries []*models.KnowledgeEntry
	entry   *models.KnowledgeEntry
	err     error
}

func (m *mockKnowledgeRepo) Get(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error) {
	return m.GetWithHistory(ctx, category, field)
}

func (m *mockKnowledgeRepo) GetWithHistory(ctx context.Context, category models.Category, field string) (*models.KnowledgeEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entry, nil
}

func (m *mockKnowledgeRepo) List(ctx context.Context, category *models.Category) ([]*models.KnowledgeEntry, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.entries, nil
}

func (m *mockKnowledgeRepo) Insert(ctx context.Context, entry *models.KnowledgeEntry) error {
	return nil
}

func (m *mockKnowledgeRepo) UpdateVersioned(ctx context.Context, category models.Category, field string, value models.Value, updatedBy string, expectedVersion int) (*models.KnowledgeEntry, error) {
	return nil, nil
}

func (m *mockKnowledgeRepo) Delete(ctx context.Context, category models.Category, field string) error {
	return nil
}

func (m *mockKnowledgeRepo) AddNote(ctx context.Context, category models.Category, field, note, addedBy string) error {
	return nil
}

func (m *mockKnowledgeRepo) Count(ctx context.Context) (int, error) {
	return 0, nil
}

// newTestServer builds an MCP server for registering tools under test.
func newTestServer() *server.MCPServer {
	return server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true))
}

// adminContext returns a context carrying admin claims, as the auth
// middleware would inject for a verified admin token.
func adminContext() context.Context {
	claims := &auth.Claims{Email: "admin@example.com", Roles: []string{auth.RoleAdmin}}
	return context.WithValue(context.Background(), auth.ClaimsKey, claims)
}

// memberContext returns a context carrying non-admin claims.
func memberContext() context.Context {
	claims := &auth.Claims{Email: "member@example.com", Roles: []string{"member"}}
	return context.WithValue(context.Background(), auth.ClaimsKey, claims)
}

// callTool invokes a tool through the JSON-RPC surface and returns the
// parsed response envelope.
func callTool(t *testing.T, ctx context.Context, s *server.MCPServer, name string, arguments map[string]any) toolResponse {
	t.Helper()

	argsJSON, err := json.Marshal(arguments)
	require.NoError(t, err)
	request := fmt.Sprintf(`{"jsonrpc":"2.0","method":"tools/call","params":{"name":%q,"arguments":%s},"id":1}`, name, argsJSON)

	raw := s.HandleMessage(ctx, []byte(request))
	rawBytes, err := json.Marshal(raw)
	require.NoError(t, err)

	var response toolResponse
	require.NoError(t, json.Unmarshal(rawBytes, &response))
	return response
}

type toolResponse struct {
	Result *struct {
		IsError bool `json:"isError"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"result"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// text returns the first text content block of a successful result.
func (r toolResponse) text(t *testing.T) string {
	t.Helper()
	require.NotNil(t, r.Result, "expected a tool result, got error: %+v", r.Error)
	require.NotEmpty(t, r.Result.Content)
	return r.Result.Content[0].Text
}
