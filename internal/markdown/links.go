package markdown

import (
	"net/url"
	"strings"
)

// LinkStatus classifies a link target
type LinkStatus string

const (
	LinkOK           LinkStatus = "ok"
	LinkRelative     LinkStatus = "relative"
	LinkAnchor       LinkStatus = "anchor"
	LinkEmpty        LinkStatus = "empty"
	LinkMalformed    LinkStatus = "malformed"
	LinkUnsafeScheme LinkStatus = "unsafe_scheme"
)

// LinkCheck is the validation outcome for one link
type LinkCheck struct {
	Link   Link       `json:"link"`
	Status LinkStatus `json:"status"`
	Scheme string     `json:"scheme,omitempty"`
	Host   string     `json:"host,omitempty"`
}

var safeSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"mailto": true,
	"ftp":    true,
}

// ValidateLinks checks every link target without fetching it
func ValidateLinks(links []Link) []LinkCheck {
	checks := make([]LinkCheck, 0, len(links))
	for _, l := range links {
		checks = append(checks, validate(l))
	}
	return checks
}

func validate(l Link) LinkCheck {
	check := LinkCheck{Link: l}
	target := strings.TrimSpace(l.URL)

	switch {
	case target == "":
		check.Status = LinkEmpty
		return check
	case strings.HasPrefix(target, "#"):
		check.Status = LinkAnchor
		return check
	}

	u, err := url.Parse(target)
	if err != nil {
		check.Status = LinkMalformed
		return check
	}

	check.Scheme = strings.ToLower(u.Scheme)
	check.Host = u.Hostname()
	switch {
	case check.Scheme == "":
		check.Status = LinkRelative
	case !safeSchemes[check.Scheme]:
		check.Status = LinkUnsafeScheme
	case (check.Scheme == "http" || check.Scheme == "https") && check.Host == "":
		check.Status = LinkMalformed
	default:
		check.Status = LinkOK
	}
	return check
}
