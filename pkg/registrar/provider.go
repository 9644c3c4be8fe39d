package registrar

import (
	"context"

	"github.com/cockroachdb/errors"
)

const TypeCNAME = "CNAME"

var (
	ErrAuthentication = errors.New("authentication failed")
	ErrNotLoggedIn    = errors.New("not logged in")
	ErrNotFound       = errors.New("not found")
	// ErrConflict marks a write the registrar refused, such as a duplicate
	// record on add or a missing record on update.
	ErrConflict = errors.New("conflict")
)

type Domain struct {
	ID      string     `json:"id"`
	Name    string     `json:"domain_name"`
	Active  bool       `json:"active"`
	Entries []DNSEntry `json:"entries,omitempty"`
}

type DNSEntry struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Content   string `json:"content"`
	TTL       int    `json:"ttl,omitempty"`
	IsDefault bool   `json:"is_default"`
	CanRevert bool   `json:"can_revert"`
}

// Registrar is an authenticated session against a registrar's DNS API.
// Login must succeed before any other method is called.
type Registrar interface {
	Login(ctx context.Context, username, password string) error
	ListDomains(ctx context.Context) ([]Domain, error)
	ListDomainsWithEntries(ctx context.Context, domain string) ([]Domain, error)
	AddDNSEntry(ctx context.Context, domain string, entry DNSEntry) (string, error)
	DeleteDNSEntry(ctx context.Context, id string) (string, error)
	UpdateDNSTarget(ctx context.Context, domain string, entry DNSEntry) (string, error)
}

// NewCNAME builds the entry sent by add and update. The type is always CNAME.
func NewCNAME(name, target string) DNSEntry {
	return DNSEntry{Name: name, Type: TypeCNAME, Content: target}
}
