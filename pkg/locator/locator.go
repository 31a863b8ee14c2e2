// Package locator parses the URL-like strings that name a copy's
// source and destination and dispatches them to
// the driver registered for their scheme.
package locator

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"sync"

	"github.com/dbcrossbar/dbcrossbar/pkg/dbcerrors"
)

// Locator is a parsed, driver-tagged locator string: `scheme ":" body
// ( "#" fragment )? ( "?" query )?`. It is an immutable value object;
// two Locators are equal iff their canonical String forms match.
type Locator struct {
	Scheme   string
	Body     string
	Fragment string
	Query    url.Values

	raw string
}

// String renders the canonical form of the locator.
func (l Locator) String() string { return l.raw }

// Parser is implemented by each driver package to validate and
// further decompose the body/fragment/query of a locator whose scheme
// it owns. Returning an error here is a KindLocator error.
type Parser func(l Locator) (interface{}, error)

var (
	mu        sync.RWMutex
	factories = map[string]Parser{}
)

// Register associates a scheme with a driver's locator parser. Called
// once per driver at process startup, typically from an init() in a
// blank-imported pkg/drivers/register subpackage. Registering the
// same scheme twice is a programming error and panics, matching the
// "registration is effectively read-only thereafter" invariant.
func Register(scheme string, parser Parser) {
	mu.Lock()
	defer mu.Unlock()
	if _, dup := factories[scheme]; dup {
		panic(fmt.Sprintf("locator: scheme %q already registered", scheme))
	}
	factories[scheme] = parser
}

// Schemes returns every currently registered scheme, sorted, mostly
// useful for the `features` CLI command and tests.
func Schemes() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for s := range factories {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// resetForTesting clears the registry. Exported only within the
// package (via the exported test hook below) so unit tests can run
// against an isolated registry instead of the process-wide one.
func resetForTesting() {
	mu.Lock()
	defer mu.Unlock()
	factories = map[string]Parser{}
}

// ResetForTesting clears the global registry. Test helper only; the
// spec notes that tests must be able to substitute an isolated
// registry instance instead of accumulating registrations globally.
func ResetForTesting() { resetForTesting() }

// Parse splits raw into scheme/body/fragment/query and, if a driver is
// registered for the scheme, invokes its Parser to obtain the
// driver-specific handle. Parsing is total: every locator string
// either resolves to a registered driver or returns an UnknownScheme
// error.
func Parse(raw string) (Locator, interface{}, error) {
	l, err := split(raw)
	if err != nil {
		return Locator{}, nil, err
	}

	mu.RLock()
	parser, ok := factories[l.Scheme]
	mu.RUnlock()
	if !ok {
		return Locator{}, nil, dbcerrors.Newf(dbcerrors.KindLocator, "unknown scheme %q", l.Scheme)
	}

	handle, err := parser(l)
	if err != nil {
		return Locator{}, nil, dbcerrors.Wrapf(err, dbcerrors.KindLocator, "parsing locator %q", raw)
	}
	return l, handle, nil
}

func split(raw string) (Locator, error) {
	idx := strings.IndexByte(raw, ':')
	if idx <= 0 {
		return Locator{}, dbcerrors.Newf(dbcerrors.KindLocator, "locator %q has no scheme", raw)
	}
	scheme := raw[:idx]
	rest := raw[idx+1:]

	// Grammar order is body ("#" fragment)? ("?" query)?: the
	// fragment, when present, precedes the query in the raw string.
	body := rest
	fragment := ""
	queryStr := ""

	if h := strings.IndexByte(rest, '#'); h >= 0 {
		body = rest[:h]
		afterHash := rest[h+1:]
		if q := strings.IndexByte(afterHash, '?'); q >= 0 {
			fragment = afterHash[:q]
			queryStr = afterHash[q+1:]
		} else {
			fragment = afterHash
		}
	} else if q := strings.IndexByte(rest, '?'); q >= 0 {
		body = rest[:q]
		queryStr = rest[q+1:]
	}

	query := url.Values{}
	if queryStr != "" {
		values, err := url.ParseQuery(queryStr)
		if err != nil {
			return Locator{}, dbcerrors.Wrapf(err, dbcerrors.KindLocator, "parsing query in %q", raw)
		}
		query = values
	}

	return Locator{Scheme: scheme, Body: body, Fragment: fragment, Query: query, raw: raw}, nil
}
