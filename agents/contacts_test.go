package agents

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barunaniket/concierge/agent"
)

func writeAddressBook(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "contacts.csv")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func findContact(t *testing.T, a *ContactsAgent, query string) *agent.Response {
	t.Helper()
	msg := agent.NewMessage("tester", ContactsName, agent.KindTask, &agent.Request{
		Action:     "find_contact",
		Parameters: map[string]any{"query": query},
	}, agent.NewCorrelationID())
	resp, err := a.Handle(context.Background(), msg)
	require.NoError(t, err)
	return resp
}

func TestContactsAgent_LoadsCSV(t *testing.T) {
	path := writeAddressBook(t, "name,email,srn,prn\nJane Doe,jane@example.com,SRN001,PRN001\nBob Stone,bob@example.com,SRN002,PRN002\n")
	a := NewContactsAgent(path)
	require.NoError(t, a.OnStart(context.Background(), nil))

	resp := findContact(t, a, "jane")
	assert.Equal(t, agent.ResponseSuccess, resp.Status)
	assert.Equal(t, "jane@example.com", resp.Data["email"])
	assert.Equal(t, "Jane Doe", resp.Data["name"])
}

func TestContactsAgent_MatchesAnyFieldCaseInsensitive(t *testing.T) {
	a := NewContactsAgentFromList([]Contact{
		{Name: "Jane Doe", Email: "jane@example.com", SRN: "SRN001"},
		{Name: "Bob Stone", Email: "bob@corp.example.com", PRN: "PRN777"},
	})

	// By email fragment.
	resp := findContact(t, a, "CORP.example")
	assert.Equal(t, agent.ResponseSuccess, resp.Status)
	assert.Equal(t, "Bob Stone", resp.Data["name"])

	// By id.
	resp = findContact(t, a, "prn777")
	assert.Equal(t, "Bob Stone", resp.Data["name"])
}

func TestContactsAgent_FirstMatchWins(t *testing.T) {
	a := NewContactsAgentFromList([]Contact{
		{Name: "Jane Doe", Email: "jane@example.com"},
		{Name: "Jane Smith", Email: "jsmith@example.com"},
	})

	resp := findContact(t, a, "jane")
	assert.Equal(t, "Jane Doe", resp.Data["name"])
}

func TestContactsAgent_NoMatchIsBusinessError(t *testing.T) {
	a := NewContactsAgentFromList([]Contact{{Name: "Jane Doe"}})

	resp := findContact(t, a, "nobody")
	assert.Equal(t, agent.ResponseError, resp.Status)
	assert.Contains(t, resp.Message, "nobody")
}

func TestContactsAgent_MissingQuery(t *testing.T) {
	a := NewContactsAgentFromList(nil)
	msg := agent.NewMessage("tester", ContactsName, agent.KindTask, &agent.Request{
		Action: "find_contact",
	}, agent.NewCorrelationID())
	resp, err := a.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, agent.ResponseError, resp.Status)
}

func TestContactsAgent_UnknownAction(t *testing.T) {
	a := NewContactsAgentFromList(nil)
	msg := agent.NewMessage("tester", ContactsName, agent.KindTask, &agent.Request{
		Action: "dial_number",
	}, agent.NewCorrelationID())
	resp, err := a.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, agent.ResponseError, resp.Status)
}

func TestContactsAgent_StartFailsOnMissingFile(t *testing.T) {
	a := NewContactsAgent(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, a.OnStart(context.Background(), nil))
}

func TestContactsAgent_StartFailsWithoutNameColumn(t *testing.T) {
	path := writeAddressBook(t, "email,phone\njane@example.com,555\n")
	a := NewContactsAgent(path)
	assert.Error(t, a.OnStart(context.Background(), nil))
}

func TestContactsAgent_GetAllContacts(t *testing.T) {
	a := NewContactsAgentFromList([]Contact{
		{Name: "Jane Doe", Email: "jane@example.com"},
		{Name: "Bob Stone", Email: "bob@example.com"},
	})

	msg := agent.NewMessage("tester", ContactsName, agent.KindTask, &agent.Request{
		Action: "get_all_contacts",
	}, agent.NewCorrelationID())
	resp, err := a.Handle(context.Background(), msg)
	require.NoError(t, err)
	require.Equal(t, agent.ResponseSuccess, resp.Status)
	assert.Equal(t, 2, resp.Data["count"])
	assert.Equal(t, []string{"Jane Doe", "Bob Stone"}, resp.Data["contacts"])
}
