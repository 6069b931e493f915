package deploy

import (
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const appDomainSuffix = ".fly.dev"

// AppNameFromURL recovers the app name from a previously stored deploy
// URL, e.g. "foo-ab12" from "https://foo-ab12.fly.dev". Returns "" when
// the URL does not look like a deployed app URL.
func AppNameFromURL(stored string) string {
	if stored == "" {
		return ""
	}
	u, err := url.Parse(stored)
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" && !strings.Contains(stored, "//") {
		// Bare host without scheme.
		u, err = url.Parse("https://" + stored)
		if err != nil {
			return ""
		}
		host = u.Hostname()
	}
	name, ok := strings.CutSuffix(host, appDomainSuffix)
	if !ok || name == "" || strings.Contains(name, ".") {
		return ""
	}
	return name
}

// NewAppName mints a fresh app name from a slug plus a 4-hex suffix, so
// repeated deploys of differently-named projects never collide.
func NewAppName(slug string) string {
	slug = Slugify(slug)
	if slug == "" {
		slug = "app"
	}
	return slug + "-" + uuid.NewString()[:4]
}

// Slugify lowercases and reduces a name to the [a-z0-9-] alphabet app
// names allow.
func Slugify(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
