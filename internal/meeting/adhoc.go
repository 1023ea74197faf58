package meeting

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	DefaultRoomBaseURL = "https://meet.jit.si"
	DefaultRoomPrefix  = "interview-"

	roomHashChars = 24
)

// AdHocProvider derives a room URL from the booking id alone, so the same
// booking always maps to the same room.
type AdHocProvider struct {
	baseURL string
	prefix  string
	secret  []byte
}

func NewAdHocProvider(baseURL, prefix, secret string) *AdHocProvider {
	if baseURL == "" {
		baseURL = DefaultRoomBaseURL
	}
	if prefix == "" {
		prefix = DefaultRoomPrefix
	}
	return &AdHocProvider{baseURL: strings.TrimRight(baseURL, "/"), prefix: prefix, secret: []byte(secret)}
}

func (p *AdHocProvider) Name() string { return "adhoc" }

func (p *AdHocProvider) Room(bookingID string) string {
	mac := hmac.New(sha256.New, p.secret)
	mac.Write([]byte(bookingID))
	sum := hex.EncodeToString(mac.Sum(nil))
	return p.baseURL + "/" + p.prefix + sum[:roomHashChars]
}

func (p *AdHocProvider) Provision(_ context.Context, req Request) (string, error) {
	return p.Room(req.Booking.ID), nil
}
