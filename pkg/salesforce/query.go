package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
)

// Account represents a Salesforce Account record (a CRM client).
type Account struct {
	ID   string `json:"Id" salesforce:"Id"`
	Name string `json:"Name" salesforce:"Name"`
}

// Contact represents a Salesforce Contact record.
type Contact struct {
	ID        string `json:"Id" salesforce:"Id"`
	Name      string `json:"Name" salesforce:"Name"`
	AccountID string `json:"AccountId" salesforce:"AccountId"`
}

// FindAccountsByName returns up to limit Accounts whose Name contains any
// of terms. SOQL LIKE is case-insensitive.
func FindAccountsByName(ctx context.Context, c Client, terms []string, limit int) ([]Account, error) {
	if len(terms) == 0 {
		return nil, eris.New("sf: find accounts by name: no search terms")
	}
	if limit <= 0 {
		limit = 10
	}
	conds := make([]string, len(terms))
	for i, t := range terms {
		conds[i] = fmt.Sprintf("Name LIKE '%%%s%%'", escapeSoqlLike(t))
	}
	where := strings.Join(conds, " OR ")
	if len(conds) > 1 {
		where = "(" + where + ")"
	}
	soql := fmt.Sprintf("SELECT Id, Name FROM Account WHERE %s ORDER BY Name LIMIT %d", where, limit)

	var accounts []Account
	if err := c.Query(ctx, soql, &accounts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find accounts by name %s", strings.Join(terms, "|")))
	}
	return accounts, nil
}

// FindContactByAccount returns the oldest Contact on an Account, or nil.
func FindContactByAccount(ctx context.Context, c Client, accountID string) (*Contact, error) {
	soql := fmt.Sprintf(
		"SELECT Id, Name, AccountId FROM Contact WHERE AccountId = '%s' ORDER BY CreatedDate LIMIT 1",
		escapeSoql(accountID),
	)

	var contacts []Contact
	if err := c.Query(ctx, soql, &contacts); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("sf: find contact by account %s", accountID))
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// escapeSoql escapes single quotes in SOQL string literals to prevent injection.
func escapeSoql(s string) string {
	return strings.ReplaceAll(s, "'", "\\'")
}

// escapeSoqlLike also escapes the LIKE wildcards.
func escapeSoqlLike(s string) string {
	return strings.NewReplacer("'", "\\'", "%", "\\%", "_", "\\_").Replace(s)
}
