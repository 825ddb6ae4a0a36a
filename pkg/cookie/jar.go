package cookie

import (
	"net/url"
	"time"
)

// LogoutValue is the sentinel cookie value that, under the logout-deletion
// policy, removes the existing cookie instead of replacing it.
const LogoutValue = "LOGOUT"

// Jar is an insertion-ordered cookie store owned by a single HTTP client.
// It holds at most one live cookie per (name, domain) pair. The jar itself
// performs no locking; the owning client serializes access.
type Jar struct {
	cookies []*Cookie

	// DeleteLogoutCookies removes a stored cookie when a same-name cookie
	// arrives with the LOGOUT sentinel value.
	DeleteLogoutCookies bool
}

// NewJar returns an empty jar.
func NewJar() *Jar {
	return &Jar{}
}

// Add folds a cookie into the jar. An already-expired cookie deletes any
// stored cookie with the same name and domain. Otherwise the new cookie
// replaces a same-name-and-domain entry in place, or is appended, except
// that under the logout-deletion policy a LOGOUT value deletes the entry.
func (j *Jar) Add(c *Cookie) {
	if c.Expired(time.Now()) {
		for i, existing := range j.cookies {
			if existing.Name == c.Name && existing.Domain == c.Domain {
				j.cookies = append(j.cookies[:i], j.cookies[i+1:]...)
				return
			}
		}
		return
	}

	for i, existing := range j.cookies {
		if existing.Name == c.Name && existing.Domain == c.Domain {
			if j.DeleteLogoutCookies && c.Value == LogoutValue {
				j.cookies = append(j.cookies[:i], j.cookies[i+1:]...)
			} else {
				j.cookies[i] = c
			}
			return
		}
	}

	j.cookies = append(j.cookies, c)
}

// Matching returns the cookies applicable to the given request URL at the
// given time, in insertion order.
func (j *Jar) Matching(requestURL *url.URL, now time.Time) []*Cookie {
	var matched []*Cookie
	for _, c := range j.cookies {
		if c.AppliesTo(requestURL, now) {
			matched = append(matched, c)
		}
	}
	return matched
}

// Remove deletes the first cookie with the given name. It reports whether
// a cookie was removed.
func (j *Jar) Remove(name string) bool {
	for i, c := range j.cookies {
		if c.Name == name {
			j.cookies = append(j.cookies[:i], j.cookies[i+1:]...)
			return true
		}
	}
	return false
}

// RemoveValue deletes the first cookie with the given name and value.
func (j *Jar) RemoveValue(name, value string) bool {
	for i, c := range j.cookies {
		if c.Name == name && c.Value == value {
			j.cookies = append(j.cookies[:i], j.cookies[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes every cookie from the jar.
func (j *Jar) Clear() {
	j.cookies = nil
}

// All returns the stored cookies in insertion order.
func (j *Jar) All() []*Cookie {
	out := make([]*Cookie, len(j.cookies))
	copy(out, j.cookies)
	return out
}

// Len returns the number of stored cookies.
func (j *Jar) Len() int {
	return len(j.cookies)
}
