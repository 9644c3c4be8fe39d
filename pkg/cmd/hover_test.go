package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	cli "github.com/larivierec/hover-cli/pkg/cmd"
	"github.com/larivierec/hover-cli/pkg/registrar"
	"github.com/larivierec/hover-cli/pkg/registrar/hover/hovertest"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"
)

type invocation struct {
	code   int
	stdout string
	stderr string
}

func start(t *testing.T, server *hovertest.Server, args ...string) invocation {
	t.Helper()
	full := append([]string{"-u", hovertest.Username, "-p", hovertest.Password, "--endpoint", server.Endpoint()}, args...)
	var stdout, stderr bytes.Buffer
	code := cli.Start(context.Background(), full, &stdout, &stderr)
	return invocation{code: code, stdout: stdout.String(), stderr: stderr.String()}
}

func TestStart_ListDomains(t *testing.T) {
	other := registrar.Domain{ID: "dom2", Name: "example.org", Active: false}
	server := hovertest.NewServer(t, hovertest.SampleDomain(), other)

	res := start(t, server, "ls:domains")
	assert.Equal(t, cli.ExitOK, res.code, res.stderr)
	assert.Equal(t, "", res.stderr)

	var domains []map[string]any
	assert.NilError(t, json.Unmarshal([]byte(res.stdout), &domains))
	assert.Equal(t, len(domains), 2)
	assert.Equal(t, "example.com", domains[0]["domain_name"])
	assert.Equal(t, "example.org", domains[1]["domain_name"])
	_, hasEntries := domains[0]["entries"]
	assert.Assert(t, !hasEntries)
	assert.Assert(t, strings.HasPrefix(res.stdout, "[\n  {\n"), "output is not pretty-printed")
}

func TestStart_ListDomainsEmpty(t *testing.T) {
	server := hovertest.NewServer(t)

	res := start(t, server, "ls:domains")
	assert.Equal(t, cli.ExitOK, res.code)
	assert.Equal(t, "[]\n", res.stdout)
}

func TestStart_ListCnames(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain(), registrar.Domain{ID: "dom2", Name: "example.org"})

	res := start(t, server, "ls:cnames", "--domain", "example.com")
	assert.Equal(t, cli.ExitOK, res.code, res.stderr)

	var entries []registrar.DNSEntry
	assert.NilError(t, json.Unmarshal([]byte(res.stdout), &entries))
	assert.DeepEqual(t, hovertest.SampleDomain().Entries, entries)
}

func TestStart_ListCnamesTable(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	res := start(t, server, "-o", "table", "ls:cnames", "-d", "example.com")
	assert.Equal(t, cli.ExitOK, res.code, res.stderr)
	assert.Assert(t, is.Contains(res.stdout, "TARGET"))
	assert.Assert(t, is.Contains(res.stdout, "example.net"))
	assert.Assert(t, is.Contains(res.stdout, "dns2"))
}

func TestStart_ListCnamesUnknownDomain(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	res := start(t, server, "ls:cnames", "-d", "missing.com")
	assert.Equal(t, cli.ExitFatal, res.code)
	assert.Equal(t, "", res.stdout)
	assert.Assert(t, is.Contains(res.stderr, "Domain not found"))
	assert.Assert(t, is.Contains(res.stderr, "Usage: hover"))
}

func TestStart_AddCnameRoundTrip(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	res := start(t, server, "add:cname", "-d", "example.com", "-s", "blog", "-t", "hosting.example.net")
	assert.Equal(t, cli.ExitOK, res.code, res.stderr)
	assert.Equal(t, "{\"succeeded\":true}\n", res.stdout)

	res = start(t, server, "ls:cnames", "-d", "example.com")
	assert.Equal(t, cli.ExitOK, res.code, res.stderr)
	var entries []registrar.DNSEntry
	assert.NilError(t, json.Unmarshal([]byte(res.stdout), &entries))

	var found bool
	for _, e := range entries {
		if e.Name == "blog" && e.Content == "hosting.example.net" && e.Type == registrar.TypeCNAME {
			found = true
		}
	}
	assert.Assert(t, found, "added record missing from %s", res.stdout)
}

func TestStart_AddCnameConflict(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	res := start(t, server, "add:cname", "-d", "example.com", "-s", "www", "-t", "elsewhere.example.net")
	assert.Equal(t, cli.ExitConflict, res.code)
	assert.Equal(t, "", res.stdout)
	assert.Equal(t, 1, strings.Count(res.stderr, "\n"), res.stderr)
	assert.Assert(t, is.Contains(res.stderr, "more than one CNAME record"))
	assert.Assert(t, !strings.Contains(res.stderr, "Usage"))
	assert.Assert(t, !strings.Contains(res.stderr, "goroutine"))
}

func TestStart_UpdateCname(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	res := start(t, server, "update:cname", "-d", "example.com", "-s", "www", "-t", "new.example.net")
	assert.Equal(t, cli.ExitOK, res.code, res.stderr)
	assert.Equal(t, "{\"succeeded\":true}\n", res.stdout)
	assert.Equal(t, "new.example.net", server.Domains()[0].Entries[1].Content)
}

func TestStart_UpdateCnameConflict(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	res := start(t, server, "update:cname", "-d", "example.com", "-s", "api", "-t", "new.example.net")
	assert.Equal(t, cli.ExitConflict, res.code)
	assert.Equal(t, "", res.stdout)
	assert.Equal(t, "no CNAME record named api in example.com to update\n", res.stderr)
}

func TestStart_UpdateCnameWriteRejected(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())
	server.Fail("PUT /api/dns/dns2", http.StatusUnprocessableEntity, "invalid_content", "Content is not a valid hostname")

	res := start(t, server, "update:cname", "-d", "example.com", "-s", "www", "-t", "not a host")
	assert.Equal(t, cli.ExitConflict, res.code)
	assert.Equal(t, "", res.stdout)
	assert.Equal(t, 1, strings.Count(res.stderr, "\n"), res.stderr)
	assert.Assert(t, is.Contains(res.stderr, "Content is not a valid hostname"))
	assert.Assert(t, !strings.Contains(res.stderr, "Usage"))
}

func TestStart_RemoveCname(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	res := start(t, server, "rm:cname", "-id", "dns2")
	assert.Equal(t, cli.ExitOK, res.code, res.stderr)
	assert.Equal(t, "{\"succeeded\":true}\n", res.stdout)

	var deletes int
	for _, call := range server.Requests() {
		if strings.HasPrefix(call, "DELETE ") {
			deletes++
			assert.Equal(t, "DELETE /api/dns/dns2", call)
		}
	}
	assert.Equal(t, 1, deletes)
}

func TestStart_RemoveCnameNotFoundIsFatal(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	res := start(t, server, "rm:cname", "--dns-id", "dns999")
	assert.Equal(t, cli.ExitFatal, res.code)
	assert.Assert(t, is.Contains(res.stderr, "DNS record not found"))
	assert.Assert(t, is.Contains(res.stderr, "Usage: hover"))
}

func TestStart_AuthenticationFailure(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	var stdout, stderr bytes.Buffer
	code := cli.Start(context.Background(),
		[]string{"-u", hovertest.Username, "-p", "wrong-password", "--endpoint", server.Endpoint(), "-v", "ls:domains"},
		&stdout, &stderr)

	assert.Equal(t, cli.ExitFatal, code)
	assert.Equal(t, "", stdout.String())
	assert.Assert(t, is.Contains(stderr.String(), "Invalid username or password"))
	assert.Assert(t, is.Contains(stderr.String(), "Usage: hover"))
	assert.Assert(t, !strings.Contains(stderr.String(), "wrong-password"))
	assert.DeepEqual(t, []string{"POST /api/login"}, server.Requests())
}

func TestStart_VerboseNeverLogsPassword(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	res := start(t, server, "-vv", "add:cname", "-d", "example.com", "-s", "blog", "-t", "hosting.example.net")
	assert.Equal(t, cli.ExitOK, res.code, res.stderr)
	assert.Assert(t, is.Contains(res.stderr, "logged in"))
	assert.Assert(t, !strings.Contains(res.stderr, hovertest.Password))
}

func TestStart_LoginNotSucceededIsFatal(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())
	server.Fail("POST /api/login", http.StatusOK, "account_locked", "Account locked")

	res := start(t, server, "ls:domains")
	assert.Equal(t, cli.ExitFatal, res.code)
	assert.Assert(t, is.Contains(res.stderr, "Account locked"))
	assert.DeepEqual(t, []string{"POST /api/login"}, server.Requests())
}

func TestStart_UnresponsivePushgateway(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())
	gateway := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, req *http.Request) {
		<-req.Context().Done()
	}))
	defer gateway.Close()

	began := time.Now()
	res := start(t, server, "--timeout", "200ms", "--pushgateway", gateway.URL, "ls:domains")
	assert.Equal(t, cli.ExitOK, res.code, res.stderr)
	assert.Assert(t, is.Contains(res.stdout, "example.com"))
	assert.Assert(t, is.Contains(res.stderr, "unable to push metrics"))
	assert.Assert(t, time.Since(began) < 5*time.Second)
}

func TestStart_ParseFailureMakesNoRequest(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	for _, args := range [][]string{
		{"ls:cnames"},
		{"add:cname", "-d", "example.com", "-s", "www"},
		{"rm:cname"},
		{"update:cname", "-s", "www", "-t", "x.example.net"},
		{},
		{"ls:domains", "rm:cname"},
	} {
		res := start(t, server, args...)
		assert.Equal(t, cli.ExitFatal, res.code, args)
		assert.Assert(t, is.Contains(res.stderr, "Usage: hover"), args)
		assert.Equal(t, "", res.stdout)
	}
	assert.Equal(t, len(server.Requests()), 0)
}

func TestStart_Help(t *testing.T) {
	server := hovertest.NewServer(t, hovertest.SampleDomain())

	for _, args := range [][]string{{"--help"}, {"-h", "ls:cnames"}, {"rm:cname", "--help"}} {
		res := start(t, server, args...)
		assert.Equal(t, cli.ExitOK, res.code)
		assert.Assert(t, is.Contains(res.stdout, "Usage: hover"))
		assert.Equal(t, "", res.stderr)
	}

	var stdout bytes.Buffer
	assert.Equal(t, cli.ExitOK, cli.Start(context.Background(), []string{"-h"}, &stdout, &bytes.Buffer{}))
	assert.Equal(t, len(server.Requests()), 0)
}

// stubRegistrar returns canned results without any transport.
type stubRegistrar struct {
	domains []registrar.Domain
	err     error
	calls   []string
}

func (s *stubRegistrar) Login(context.Context, string, string) error { return nil }

func (s *stubRegistrar) ListDomains(context.Context) ([]registrar.Domain, error) {
	s.calls = append(s.calls, "ListDomains")
	return s.domains, s.err
}

func (s *stubRegistrar) ListDomainsWithEntries(_ context.Context, domain string) ([]registrar.Domain, error) {
	s.calls = append(s.calls, "ListDomainsWithEntries "+domain)
	return s.domains, s.err
}

func (s *stubRegistrar) AddDNSEntry(_ context.Context, domain string, e registrar.DNSEntry) (string, error) {
	s.calls = append(s.calls, "AddDNSEntry "+domain+" "+e.Name+" "+e.Type+" "+e.Content)
	return "added", s.err
}

func (s *stubRegistrar) DeleteDNSEntry(_ context.Context, id string) (string, error) {
	s.calls = append(s.calls, "DeleteDNSEntry "+id)
	return "deleted", s.err
}

func (s *stubRegistrar) UpdateDNSTarget(_ context.Context, domain string, e registrar.DNSEntry) (string, error) {
	s.calls = append(s.calls, "UpdateDNSTarget "+domain+" "+e.Name+" "+e.Type+" "+e.Content)
	return "updated", s.err
}

func TestListCnames_FirstMatchOnly(t *testing.T) {
	stub := &stubRegistrar{domains: []registrar.Domain{
		{Name: "example.com", Entries: []registrar.DNSEntry{{ID: "a", Name: "www", Type: "CNAME", Content: "one.example.net"}}},
		{Name: "example.com.au", Entries: []registrar.DNSEntry{{ID: "b", Name: "www", Type: "CNAME", Content: "two.example.net"}}},
	}}

	res := (&cli.ListCnames{Domain: "example.com"}).Execute(context.Background(), stub)
	assert.Equal(t, cli.Success, res.Kind)
	assert.DeepEqual(t, stub.domains[0].Entries, res.Value)
}

func TestListCnames_NoMatchIsNotFound(t *testing.T) {
	res := (&cli.ListCnames{Domain: "example.com"}).Execute(context.Background(), &stubRegistrar{})
	assert.Equal(t, cli.Fatal, res.Kind)
	assert.Assert(t, errors.Is(res.Err, registrar.ErrNotFound))
}

func TestListCnames_EmptyDomainRendersEmptyArray(t *testing.T) {
	stub := &stubRegistrar{domains: []registrar.Domain{{Name: "example.com"}}}
	res := (&cli.ListCnames{Domain: "example.com"}).Execute(context.Background(), stub)
	assert.DeepEqual(t, []registrar.DNSEntry{}, res.Value)
}

func TestWriteCommands_ConflictPolicy(t *testing.T) {
	conflict := errors.Mark(errors.New("duplicate record"), registrar.ErrConflict)
	other := errors.New("connection reset by peer")

	cases := []struct {
		name string
		cmd  cli.Command
		err  error
		want cli.Kind
	}{
		{"add ok", &cli.AddCname{Domain: "example.com", Subdomain: "www", Target: "x.net"}, nil, cli.Success},
		{"add conflict", &cli.AddCname{Domain: "example.com", Subdomain: "www", Target: "x.net"}, conflict, cli.Conflict},
		{"add transport", &cli.AddCname{Domain: "example.com", Subdomain: "www", Target: "x.net"}, other, cli.Fatal},
		{"update conflict", &cli.UpdateCname{Domain: "example.com", Subdomain: "www", Target: "x.net"}, conflict, cli.Conflict},
		{"update transport", &cli.UpdateCname{Domain: "example.com", Subdomain: "www", Target: "x.net"}, other, cli.Fatal},
		{"remove conflict stays fatal", &cli.RemoveCname{ID: "dns1"}, conflict, cli.Fatal},
		{"list conflict stays fatal", &cli.ListDomains{}, conflict, cli.Fatal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := tc.cmd.Execute(context.Background(), &stubRegistrar{err: tc.err})
			assert.Equal(t, tc.want, res.Kind)
		})
	}
}

func TestWriteCommands_SendCNAME(t *testing.T) {
	stub := &stubRegistrar{}
	(&cli.AddCname{Domain: "example.com", Subdomain: "blog", Target: "host.example.net"}).Execute(context.Background(), stub)
	(&cli.UpdateCname{Domain: "example.com", Subdomain: "www", Target: "new.example.net"}).Execute(context.Background(), stub)
	(&cli.RemoveCname{ID: "dns7"}).Execute(context.Background(), stub)

	assert.DeepEqual(t, []string{
		"AddDNSEntry example.com blog CNAME host.example.net",
		"UpdateDNSTarget example.com www CNAME new.example.net",
		"DeleteDNSEntry dns7",
	}, stub.calls)
}

func TestResult_ExitCode(t *testing.T) {
	assert.Equal(t, cli.ExitOK, cli.Result{Kind: cli.Success}.ExitCode())
	assert.Equal(t, cli.ExitConflict, cli.Result{Kind: cli.Conflict}.ExitCode())
	assert.Equal(t, cli.ExitFatal, cli.Result{Kind: cli.Fatal}.ExitCode())
}
