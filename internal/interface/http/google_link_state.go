package http

import (
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// The cookie only travels to the callback route.
const (
	linkStateCookie = "google_link_state"
	linkStatePath   = "/api/v1/google/callback"
	linkStateTTL    = 5 * time.Minute
)

// linkState is the PKCE material held by the browser between GoogleAuthorize
// and GoogleCallback.
type linkState struct {
	State    string `json:"s"`
	Verifier string `json:"v"`
	IssuedAt int64  `json:"iat"`
}

func (l linkState) matches(state string, now time.Time) bool {
	if now.Sub(time.Unix(l.IssuedAt, 0)) > linkStateTTL {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(l.State), []byte(state)) == 1
}

func writeLinkState(c *gin.Context, l linkState) {
	data, _ := json.Marshal(l)
	setLinkStateCookie(c, base64.RawURLEncoding.EncodeToString(data), int(linkStateTTL/time.Second))
}

func dropLinkState(c *gin.Context) {
	setLinkStateCookie(c, "", -1)
}

func setLinkStateCookie(c *gin.Context, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(linkStateCookie, value, maxAge, linkStatePath, "", c.Request.TLS != nil, true)
}

// takeLinkState reads and clears the cookie in one step so a state value is
// never accepted twice.
func takeLinkState(c *gin.Context) (linkState, bool) {
	value, err := c.Cookie(linkStateCookie)
	dropLinkState(c)
	if err != nil || value == "" {
		return linkState{}, false
	}
	data, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return linkState{}, false
	}
	var l linkState
	if err := json.Unmarshal(data, &l); err != nil || l.State == "" || l.Verifier == "" {
		return linkState{}, false
	}
	return l, true
}
