package content

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// defaultDomains are the media hosts trusted when no domains file is configured.
var defaultDomains = []string{ //nolint: gochecknoglobals
	"youtube.com",
	"youtu.be",
	"imgur.com",
	"i.imgur.com",
	"wikimedia.org",
	"upload.wikimedia.org",
	"commons.wikimedia.org",
	"unsplash.com",
	"images.unsplash.com",
	"source.unsplash.com",
	"w3.org",
	"w3schools.com",
	"sample-videos.com",
	"pixabay.com",
	"images.pexels.com",
	"pexels.com",
	"vimeo.com",
	"cdn.pixabay.com",
	"lh3.googleusercontent.com",
	"lh4.googleusercontent.com",
	"lh5.googleusercontent.com",
	"lh6.googleusercontent.com",
	"drive.google.com",
	"docs.google.com",
	"sites.google.com",
	"blogger.googleusercontent.com",
	"storage.googleapis.com",
	"images.google.com",
	"www.google.com",
	"encrypted-tbn0.gstatic.com",
	"encrypted-tbn1.gstatic.com",
	"encrypted-tbn2.gstatic.com",
	"encrypted-tbn3.gstatic.com",
	"gstatic.com",
}

var (
	hostPattern = regexp.MustCompile(`(?i)^https?://([^/?#]+)`) //nolint: gochecknoglobals
	portSuffix  = regexp.MustCompile(`:[0-9]*$`)                 //nolint: gochecknoglobals
)

// TrustedDomains is an immutable allow-list of media hosts. A host is trusted
// when it equals a listed domain or is a subdomain of one.
type TrustedDomains struct {
	domains []string
	set     map[string]struct{}
}

// NewTrustedDomains builds a set from the given domains. Entries are trimmed,
// lower-cased and stripped of a leading "www."; empty and duplicate entries
// are dropped. The order of first appearance is kept.
func NewTrustedDomains(domains ...string) *TrustedDomains {
	t := &TrustedDomains{set: make(map[string]struct{}, len(domains))}
	for _, d := range domains {
		d = normalizeHost(d)
		if d == "" {
			continue
		}
		if _, ok := t.set[d]; ok {
			continue
		}
		t.set[d] = struct{}{}
		t.domains = append(t.domains, d)
	}

	return t
}

var defaultTrusted = NewTrustedDomains(defaultDomains...) //nolint: gochecknoglobals

// DefaultTrustedDomains returns the built-in allow-list.
func DefaultTrustedDomains() *TrustedDomains {
	return defaultTrusted
}

// IsDomainTrusted reports whether the host of rawURL is in the built-in allow-list.
func IsDomainTrusted(rawURL string) bool {
	return defaultTrusted.IsTrusted(rawURL)
}

// IsTrusted reports whether the host of rawURL is trusted. URLs without an
// http or https scheme, and authorities carrying credentials, are never
// trusted.
func (t *TrustedDomains) IsTrusted(rawURL string) bool {
	if t == nil {
		return false
	}
	host, ok := hostOf(rawURL)
	if !ok {
		return false
	}

	return t.contains(host)
}

// contains matches host and every parent domain of host, so the comparison is
// anchored on label boundaries.
func (t *TrustedDomains) contains(host string) bool {
	if _, ok := t.set[host]; ok {
		return true
	}
	for i := 0; i < len(host); i++ {
		if host[i] != '.' {
			continue
		}
		if _, ok := t.set[host[i+1:]]; ok {
			return true
		}
	}

	return false
}

// Domains returns a copy of the allow-list in its configured order.
func (t *TrustedDomains) Domains() []string {
	return slices.Clone(t.domains)
}

// Len returns the number of trusted domains.
func (t *TrustedDomains) Len() int {
	return len(t.domains)
}

// DomainsFile is the YAML layout of a trusted domains file.
type DomainsFile struct {
	// IncludeDefaults adds the built-in allow-list before the listed domains.
	IncludeDefaults bool `yaml:"include_defaults,omitempty"`
	// Domains are the trusted hosts.
	Domains []string `yaml:"domains"`
}

// LoadTrustedDomains reads an allow-list from a YAML file. The file must
// yield at least one domain.
func LoadTrustedDomains(path string) (*TrustedDomains, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read trusted domains file: %w", err)
	}

	var file DomainsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("could not parse trusted domains file %s: %w", path, err)
	}

	domains := file.Domains
	if file.IncludeDefaults {
		domains = append(slices.Clone(defaultDomains), domains...)
	}

	t := NewTrustedDomains(domains...)
	if t.Len() == 0 {
		return nil, fmt.Errorf("trusted domains file %s lists no domains", path)
	}

	return t, nil
}

// MarshalYAML renders the set in the DomainsFile layout.
func (t *TrustedDomains) MarshalYAML() (any, error) {
	return DomainsFile{Domains: t.Domains()}, nil
}

// hostOf extracts the normalized host of an http(s) URL.
func hostOf(rawURL string) (string, bool) {
	m := hostPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	authority := m[1]
	if strings.Contains(authority, "@") {
		return "", false
	}
	authority = portSuffix.ReplaceAllString(authority, "")
	host := normalizeHost(authority)

	return host, host != ""
}

func normalizeHost(host string) string {
	host = strings.ToLower(strings.TrimSpace(host))
	host = strings.TrimSuffix(host, ".")

	return strings.TrimPrefix(host, "www.")
}
