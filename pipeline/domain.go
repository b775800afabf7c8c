package pipeline

import (
	"fmt"
	"strings"
)

// Domain groups descriptors that are migrated together. Domains run in
// declaration order because later domains reference rows of earlier ones.
type Domain int

const (
	Reference Domain = iota
	User
	ImportApplication
	ExportApplication
	File
)

// Domains lists every domain in run order.
var Domains = []Domain{Reference, User, ImportApplication, ExportApplication, File}

func (d Domain) String() string {
	switch d {
	case Reference:
		return "reference"
	case User:
		return "user"
	case ImportApplication:
		return "import_application"
	case ExportApplication:
		return "export_application"
	case File:
		return "file"
	}
	return fmt.Sprintf("domain(%d)", int(d))
}

var domainAliases = map[string]Domain{
	"r":                  Reference,
	"ref":                Reference,
	"reference":          Reference,
	"u":                  User,
	"user":               User,
	"ia":                 ImportApplication,
	"import_application": ImportApplication,
	"ea":                 ExportApplication,
	"export_application": ExportApplication,
	"f":                  File,
	"file":               File,
}

// ParseDomain accepts a domain name or one of its short aliases.
func ParseDomain(s string) (Domain, error) {
	d, ok := domainAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return 0, fmt.Errorf("%w: unknown domain %q", ErrConfig, s)
	}
	return d, nil
}
