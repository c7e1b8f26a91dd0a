// Package directory provides the Active Directory (LDAP) client used
// to refresh directory principals.
package directory

import (
	"context"
	"fmt"
	"time"

	"github.com/go-ldap/ldap/v3"

	"github.com/ogulcan/ghwarden/internal/settings"
)

// Attributes pulled for each principal.
var principalAttributes = []string{"name", "mail", "userAccountControl", "department"}

// Entry is one directory search result: attribute name to values.
type Entry map[string][]string

// First returns the first value for the given attribute, or "".
func (e Entry) First(attr string) string {
	values := e[attr]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// ProtocolError wraps LDAP connection and protocol failures so callers
// can distinguish them from local errors.
type ProtocolError struct {
	Op  string
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ldap %s: %v", e.Op, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// Client is the directory search capability consumed by the LDAP
// synchronizer.
type Client interface {
	// SearchPrincipal looks up one account by username. Returns nil
	// when no entry matches.
	SearchPrincipal(ctx context.Context, username string) (Entry, error)
}

// LdapClient implements Client over go-ldap. Each search dials, binds,
// and closes its own connection.
type LdapClient struct {
	host      string
	port      int
	ssl       bool
	bindUser  string
	bindPass  string
	attribute string
	base      string
}

// NewLdapClient builds a client from the settings snapshot.
func NewLdapClient(snap *settings.Snapshot) *LdapClient {
	attribute := snap.LdapAttribute
	if attribute == "" {
		attribute = "sAMAccountName"
	}
	return &LdapClient{
		host:      snap.LdapHost,
		port:      snap.LdapPort,
		ssl:       snap.LdapSSL,
		bindUser:  snap.LdapAdminUser,
		bindPass:  snap.LdapAdminPassword,
		attribute: attribute,
		base:      snap.LdapBase,
	}
}

func (c *LdapClient) SearchPrincipal(ctx context.Context, username string) (Entry, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	if err := conn.Bind(c.bindUser, c.bindPass); err != nil {
		return nil, &ProtocolError{Op: "bind", Err: err}
	}

	filter := fmt.Sprintf("(%s=%s)", c.attribute, ldap.EscapeFilter(username))
	request := ldap.NewSearchRequest(
		c.base,
		ldap.ScopeWholeSubtree, ldap.NeverDerefAliases, 1, 0, false,
		filter,
		principalAttributes,
		nil,
	)

	result, err := conn.Search(request)
	if err != nil {
		// Size-limit exceeded still carries the first entry
		if !ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) || result == nil || len(result.Entries) == 0 {
			return nil, &ProtocolError{Op: "search", Err: err}
		}
	}
	if len(result.Entries) == 0 {
		return nil, nil
	}

	entry := make(Entry)
	for _, attr := range result.Entries[0].Attributes {
		entry[attr.Name] = attr.Values
	}
	return entry, nil
}

func (c *LdapClient) dial(ctx context.Context) (*ldap.Conn, error) {
	scheme := "ldap"
	if c.ssl {
		scheme = "ldaps"
	}
	url := fmt.Sprintf("%s://%s:%d", scheme, c.host, c.port)
	conn, err := ldap.DialURL(url)
	if err != nil {
		return nil, &ProtocolError{Op: "connect", Err: err}
	}
	if deadline, ok := ctx.Deadline(); ok {
		conn.SetTimeout(time.Until(deadline))
	}
	return conn, nil
}
