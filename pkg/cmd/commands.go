package cli

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/larivierec/hover-cli/pkg/registrar"
	"github.com/spf13/pflag"
)

// Command is one parsed operation carrying only the parameters it needs.
type Command interface {
	Name() string
	Execute(ctx context.Context, r registrar.Registrar) Result
}

type commandSpec struct {
	name        string
	description string
	build       func() (Command, *pflag.FlagSet)
}

var commands = []commandSpec{
	{"ls:domains", "list domains", func() (Command, *pflag.FlagSet) {
		c := &ListDomains{}
		return c, newCommandFlags(c.Name())
	}},
	{"ls:cnames", "list cnames", func() (Command, *pflag.FlagSet) {
		c := &ListCnames{}
		fs := newCommandFlags(c.Name())
		fs.StringVarP(&c.Domain, "domain", "d", "", "the domain for which you want cnames")
		return c, fs
	}},
	{"add:cname", "add cname record", func() (Command, *pflag.FlagSet) {
		c := &AddCname{}
		fs := newCommandFlags(c.Name())
		fs.StringVarP(&c.Domain, "domain", "d", "", "the domain for which you want to add this cname")
		fs.StringVarP(&c.Subdomain, "subdomain", "s", "", "the subdomain you're adding a cname record for")
		fs.StringVarP(&c.Target, "target", "t", "", "the DNS target for this cname record")
		return c, fs
	}},
	{"rm:cname", "delete cname record", func() (Command, *pflag.FlagSet) {
		c := &RemoveCname{}
		fs := newCommandFlags(c.Name())
		fs.StringVar(&c.ID, "dns-id", "", "the dns id of the record you want to delete (alias: -id)")
		return c, fs
	}},
	{"update:cname", "update cname record", func() (Command, *pflag.FlagSet) {
		c := &UpdateCname{}
		fs := newCommandFlags(c.Name())
		fs.StringVarP(&c.Domain, "domain", "d", "", "the domain whose cname you want to update")
		fs.StringVarP(&c.Subdomain, "subdomain", "s", "", "the subdomain of the cname record to update")
		fs.StringVarP(&c.Target, "target", "t", "", "the DNS target to update the cname record to")
		return c, fs
	}},
}

func lookupCommand(name string) (commandSpec, bool) {
	for _, spec := range commands {
		if spec.name == name {
			return spec, true
		}
	}
	return commandSpec{}, false
}

type ListDomains struct{}

func (*ListDomains) Name() string { return "ls:domains" }

func (c *ListDomains) Execute(ctx context.Context, r registrar.Registrar) Result {
	domains, err := r.ListDomains(ctx)
	if err != nil {
		return fatal(err)
	}
	if domains == nil {
		domains = []registrar.Domain{}
	}
	return structured(domains)
}

type ListCnames struct {
	Domain string `flag:"domain" validate:"required"`
}

func (*ListCnames) Name() string { return "ls:cnames" }

// Execute shows the entries of the first domain the registrar matched.
func (c *ListCnames) Execute(ctx context.Context, r registrar.Registrar) Result {
	domains, err := r.ListDomainsWithEntries(ctx, c.Domain)
	if err != nil {
		return fatal(err)
	}
	if len(domains) == 0 {
		return fatal(errors.Mark(errors.Newf("domain %s not found", c.Domain), registrar.ErrNotFound))
	}
	entries := domains[0].Entries
	if entries == nil {
		entries = []registrar.DNSEntry{}
	}
	return structured(entries)
}

type AddCname struct {
	Domain    string `flag:"domain" validate:"required"`
	Subdomain string `flag:"subdomain" validate:"required"`
	Target    string `flag:"target" validate:"required"`
}

func (*AddCname) Name() string { return "add:cname" }

func (c *AddCname) Execute(ctx context.Context, r registrar.Registrar) Result {
	return write(r.AddDNSEntry(ctx, c.Domain, registrar.NewCNAME(c.Subdomain, c.Target)))
}

type RemoveCname struct {
	ID string `flag:"dns-id" validate:"required"`
}

func (*RemoveCname) Name() string { return "rm:cname" }

func (c *RemoveCname) Execute(ctx context.Context, r registrar.Registrar) Result {
	resp, err := r.DeleteDNSEntry(ctx, c.ID)
	if err != nil {
		return fatal(err)
	}
	return text(resp)
}

// UpdateCname addresses the record by domain and name, unlike RemoveCname
// which takes an id. Both follow the registrar's own API.
type UpdateCname struct {
	Domain    string `flag:"domain" validate:"required"`
	Subdomain string `flag:"subdomain" validate:"required"`
	Target    string `flag:"target" validate:"required"`
}

func (*UpdateCname) Name() string { return "update:cname" }

func (c *UpdateCname) Execute(ctx context.Context, r registrar.Registrar) Result {
	return write(r.UpdateDNSTarget(ctx, c.Domain, registrar.NewCNAME(c.Subdomain, c.Target)))
}
