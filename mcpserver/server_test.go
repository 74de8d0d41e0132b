package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/giygas/priorauth-checker/coverage"
	"github.com/giygas/priorauth-checker/lookup"
	"github.com/giygas/priorauth-checker/policy"
)

func connect(t *testing.T, cmsStatus int, cmsBody string) (*mcp.ClientSession, chan string) {
	t.Helper()

	queries := make(chan string, 8)
	cms := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		queries <- r.URL.RawQuery
		w.WriteHeader(cmsStatus)
		_, _ = w.Write([]byte(cmsBody))
	}))
	t.Cleanup(cms.Close)

	store, err := lookup.LoadBuiltin()
	require.NoError(t, err)
	client, err := coverage.NewClient(cms.URL, coverage.Options{})
	require.NoError(t, err)

	server := New(policy.NewHandler(store, client), store.Source())

	ctx := context.Background()
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serverSession.Close() })

	session, err := mcp.NewClient(&mcp.Implementation{Name: "test-client"}, nil).Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = session.Close() })

	return session, queries
}

func callText(t *testing.T, session *mcp.ClientSession, args map[string]any) string {
	t.Helper()

	res, err := session.CallTool(context.Background(), &mcp.CallToolParams{
		Name:      ToolName,
		Arguments: args,
	})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	require.Len(t, res.Content, 1)

	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func TestListTools(t *testing.T) {
	session, _ := connect(t, http.StatusOK, `{"data":[]}`)

	res, err := session.ListTools(context.Background(), &mcp.ListToolsParams{})
	require.NoError(t, err)
	require.Len(t, res.Tools, 1)

	tool := res.Tools[0]
	assert.Equal(t, ToolName, tool.Name)
	assert.Equal(t, "Fetch CMS NCD policy using either title or direct ID/version (built-in lookup).", tool.Description)

	raw, err := json.Marshal(tool.InputSchema)
	require.NoError(t, err)
	var schema struct {
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	require.NoError(t, json.Unmarshal(raw, &schema))
	assert.Contains(t, schema.Properties, "ncd_id")
	assert.Contains(t, schema.Properties, "ncd_ver")
	assert.Contains(t, schema.Properties, "title")
	assert.Empty(t, schema.Required)
}

func TestServerIdentity(t *testing.T) {
	session, _ := connect(t, http.StatusOK, `{"data":[]}`)

	info := session.InitializeResult().ServerInfo
	require.NotNil(t, info)
	assert.Equal(t, "priorauth-checker", info.Name)
	assert.Equal(t, "2.3.0", info.Version)
}

func TestCallToolByTitle(t *testing.T) {
	session, queries := connect(t, http.StatusOK,
		`{"data":[{"document_id":313,"document_version":2,"title":"<b>Lumbar</b> Disc","transmittal_url":"https://www.cms.gov/x.pdf"}]}`)

	text := callText(t, session, map[string]any{"title": "Lumbar Artificial Disc Replacement"})
	assert.Equal(t, "ncdid=313&ncdver=2", <-queries)

	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(text), &out))
	assert.Equal(t, "Lumbar Disc", out["title"])
	assert.Equal(t, "https://www.cms.gov/x.pdf", out["transmittal_url"])
}

func TestCallToolFailuresAreText(t *testing.T) {
	session, _ := connect(t, http.StatusInternalServerError, ``)

	assert.Equal(t, "Missing NCD ID or version.", callText(t, session, map[string]any{}))
	assert.Contains(t, callText(t, session, map[string]any{"title": "Unknown Policy"}), `"Unknown Policy"`)

	text := callText(t, session, map[string]any{"ncd_id": "313", "ncd_ver": "2"})
	assert.Contains(t, text, "CMS API error")
	assert.Contains(t, text, "500")
}

func TestInputQuery(t *testing.T) {
	q := Input{NCDID: " 313 ", NCDVer: "2", Title: "t"}.Query()
	assert.Equal(t, " 313 ", q.PolicyID)
	assert.Equal(t, "2", q.PolicyVersion)
	assert.Equal(t, "t", q.Title)
}
