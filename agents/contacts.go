package agents

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/barunaniket/concierge/agent"
)

// ContactsName is the contacts agent's bus address.
const ContactsName = "contacts"

// Contact is one address book entry.
type Contact struct {
	Name  string
	Email string
	SRN   string
	PRN   string
}

// ContactsAgent answers find_contact lookups from a CSV address book
// loaded at start.
type ContactsAgent struct {
	path     string
	contacts []Contact
}

// NewContactsAgent creates a contacts agent reading the CSV at path.
func NewContactsAgent(path string) *ContactsAgent {
	return &ContactsAgent{path: path}
}

// NewContactsAgentFromList creates a contacts agent with a fixed book,
// for tests and the demo mode.
func NewContactsAgentFromList(contacts []Contact) *ContactsAgent {
	return &ContactsAgent{contacts: contacts}
}

func (a *ContactsAgent) Name() string { return ContactsName }

// OnStart loads the address book. A missing or malformed CSV fails the
// start, leaving the agent in the error state.
func (a *ContactsAgent) OnStart(_ context.Context, _ *agent.Runtime) error {
	if a.path == "" {
		return nil
	}
	contacts, err := loadContactsCSV(a.path)
	if err != nil {
		return fmt.Errorf("load address book: %w", err)
	}
	a.contacts = contacts
	log.Printf("[Agent:%s] loaded %d contacts from %s", ContactsName, len(contacts), a.path)
	return nil
}

func (a *ContactsAgent) OnStop(context.Context) error { return nil }

func (a *ContactsAgent) Handle(_ context.Context, msg *agent.Message) (*agent.Response, error) {
	req, err := agent.DecodeRequest(msg)
	if err != nil {
		return nil, err
	}
	switch req.Action {
	case "find_contact":
		query, _ := req.Parameters["query"].(string)
		if query == "" {
			return agent.Errorf("find_contact needs a query parameter"), nil
		}
		contact, ok := a.find(query)
		if !ok {
			return agent.Errorf("no contact matched %q", query), nil
		}
		return agent.Success(map[string]any{
			"name":  contact.Name,
			"email": contact.Email,
			"srn":   contact.SRN,
			"prn":   contact.PRN,
		}), nil
	case "get_all_contacts":
		names := make([]string, len(a.contacts))
		for i, c := range a.contacts {
			names[i] = c.Name
		}
		return agent.Success(map[string]any{
			"count":    len(names),
			"contacts": names,
		}), nil
	default:
		return agent.Errorf("unknown action %q", req.Action), nil
	}
}

// find matches case-insensitively on a substring of any field and
// returns the first hit in book order.
func (a *ContactsAgent) find(query string) (Contact, bool) {
	query = strings.ToLower(query)
	for _, c := range a.contacts {
		for _, field := range []string{c.Name, c.Email, c.SRN, c.PRN} {
			if field != "" && strings.Contains(strings.ToLower(field), query) {
				return c, true
			}
		}
	}
	return Contact{}, false
}

// loadContactsCSV reads an address book with a name,email,srn,prn
// header. Column order follows the header; unknown columns are ignored.
func loadContactsCSV(path string) ([]Contact, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s is empty", path)
	}

	col := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		col[strings.ToLower(strings.TrimSpace(name))] = i
	}
	if _, ok := col["name"]; !ok {
		return nil, fmt.Errorf("%s has no name column", path)
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	contacts := make([]Contact, 0, len(records)-1)
	for _, row := range records[1:] {
		contacts = append(contacts, Contact{
			Name:  field(row, "name"),
			Email: field(row, "email"),
			SRN:   field(row, "srn"),
			PRN:   field(row, "prn"),
		})
	}
	return contacts, nil
}
