package crm

import (
	"context"

	"github.com/rotisserie/eris"

	sfpkg "github.com/sells-group/hunter/pkg/salesforce"
)

// SalesforceDirectory treats Salesforce Accounts as clients and their
// Contacts as contacts.
type SalesforceDirectory struct {
	client sfpkg.Client
	m      matcher
}

// NewSalesforce creates a SalesforceDirectory.
func NewSalesforce(client sfpkg.Client, minKeyLength int) *SalesforceDirectory {
	return &SalesforceDirectory{client: client, m: newMatcher(minKeyLength)}
}

func (d *SalesforceDirectory) findAccount(ctx context.Context, name string) (*sfpkg.Account, error) {
	key, terms, ok := d.m.key(name)
	if !ok {
		return nil, nil
	}
	accounts, err := sfpkg.FindAccountsByName(ctx, d.client, terms, candidateLimit)
	if err != nil {
		return nil, eris.Wrapf(err, "crm: find accounts for %q", name)
	}
	for i := range accounts {
		if d.m.confirm(key, accounts[i].Name) {
			return &accounts[i], nil
		}
	}
	return nil, nil
}

// FindContact returns the first Contact of the matching Account. An Account
// without contacts is not a contact match.
func (d *SalesforceDirectory) FindContact(ctx context.Context, name string) (*ContactMatch, error) {
	acct, err := d.findAccount(ctx, name)
	if err != nil || acct == nil {
		return nil, err
	}
	contact, err := sfpkg.FindContactByAccount(ctx, d.client, acct.ID)
	if err != nil {
		return nil, eris.Wrapf(err, "crm: find contact for account %s", acct.ID)
	}
	if contact == nil {
		return nil, nil
	}
	return &ContactMatch{ID: contact.ID, ClientID: acct.ID}, nil
}

// FindClient returns the matching Account.
func (d *SalesforceDirectory) FindClient(ctx context.Context, name string) (*ClientMatch, error) {
	acct, err := d.findAccount(ctx, name)
	if err != nil || acct == nil {
		return nil, err
	}
	return &ClientMatch{ID: acct.ID}, nil
}
