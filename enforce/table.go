package enforce

import (
	"net/http"
	"strings"

	"golang.org/x/exp/slices"
)

// optionsStatus is the table entry used for OPTIONS. It marks the method as allowed without redirecting it.
const optionsStatus = 0

type tableEntry struct {
	method string
	status int
}

// Table maps HTTP methods to the status code used when redirecting them to HTTPS. Methods that aren't
// in the table are disallowed. Entries keep the order they were first added in.
//
// A Table is not modified after it has been built, so it is safe for concurrent use.
type Table struct {
	entries []tableEntry
	index   map[string]int
}

func newTable() *Table {
	return &Table{index: make(map[string]int)}
}

// set adds or replaces the status for the given method. Replacing keeps the method's original position.
func (t *Table) set(method string, status int) {
	if i, ok := t.index[method]; ok {
		t.entries[i].status = status
		return
	}
	t.index[method] = len(t.entries)
	t.entries = append(t.entries, tableEntry{method: method, status: status})
}

// Status returns the entry for the given method, and whether there was one.
func (t *Table) Status(method string) (int, bool) {
	if t == nil {
		return 0, false
	}
	i, ok := t.index[method]
	if !ok {
		return 0, false
	}
	return t.entries[i].status, true
}

// Redirects reports whether requests with the given method are redirected to HTTPS.
func (t *Table) Redirects(method string) bool {
	status, ok := t.Status(method)
	return ok && status != optionsStatus
}

// Methods returns the methods that are redirected, in the order they were configured.
func (t *Table) Methods() []string {
	if t == nil {
		return nil
	}

	var res []string
	for i := range t.entries {
		if t.entries[i].status != optionsStatus {
			res = append(res, t.entries[i].method)
		}
	}
	return res
}

// AllowHeader returns the value to send in the Allow header when a method is disallowed. It lists
// every method in the table, including the OPTIONS entry.
func (t *Table) AllowHeader() string {
	if t == nil {
		return ""
	}

	methods := make([]string, len(t.entries))
	for i := range t.entries {
		methods[i] = t.entries[i].method
	}
	return strings.Join(methods, ", ")
}

// buildTable creates the table for the given settings. Methods configured for internal redirects
// take precedence over ordinary redirect methods.
func buildTable(redirectMethods, internalRedirectMethods []string, temporary bool, options OptionsPolicy) *Table {
	t := newTable()

	status := http.StatusMovedPermanently
	if temporary {
		status = http.StatusFound
	}

	for _, m := range normaliseMethods(redirectMethods) {
		t.set(m, status)
	}

	for _, m := range normaliseMethods(internalRedirectMethods) {
		t.set(m, http.StatusTemporaryRedirect)
	}

	if options == OptionsAllow {
		t.set(http.MethodOptions, optionsStatus)
	}

	return t
}

// normaliseMethods upper-cases and de-duplicates the given method names, dropping any blank ones.
func normaliseMethods(methods []string) []string {
	var res []string
	for i := range methods {
		m := strings.ToUpper(strings.TrimSpace(methods[i]))
		if m != "" && !slices.Contains(res, m) {
			res = append(res, m)
		}
	}
	return res
}
