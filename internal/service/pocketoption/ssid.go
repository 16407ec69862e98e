package pocketoption

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// The broker authenticates with a socket.io event frame of the form
//   42["auth",{"session":"...","isDemo":1,"uid":12345,"platform":2}]
// Users paste these out of browser devtools, where uid sometimes arrives
// quoted. The broker rejects a quoted uid, so it is coerced to a number
// in place without reordering the payload keys.

var (
	authFramePrefix = `42["auth",`
	uidStringRe     = regexp.MustCompile(`("uid"\s*:\s*)"(\d+)"`)
)

type authPayload struct {
	Session string      `json:"session"`
	UID     json.Number `json:"uid"`
}

// PreprocessSSID normalizes a pasted SSID frame. It validates the frame
// shape and rewrites a quoted uid to a bare number. The input is returned
// otherwise untouched.
func PreprocessSSID(ssid string) (string, error) {
	ssid = strings.TrimSpace(ssid)
	if !strings.HasPrefix(ssid, authFramePrefix) || !strings.HasSuffix(ssid, "]") {
		return "", fmt.Errorf("ssid must be a 42[\"auth\",...] frame")
	}

	payload := ssid[len(authFramePrefix) : len(ssid)-1]
	var p authPayload
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return "", fmt.Errorf("ssid payload: %w", err)
	}
	if p.Session == "" {
		return "", fmt.Errorf("ssid payload: session is required")
	}
	if _, err := p.UID.Int64(); err != nil {
		return "", fmt.Errorf("ssid payload: uid must be numeric")
	}

	fixed := uidStringRe.ReplaceAllString(payload, `${1}${2}`)
	return authFramePrefix + fixed + "]", nil
}
