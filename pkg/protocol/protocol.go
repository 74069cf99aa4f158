// Package protocol defines the wire messages exchanged between a clipshare
// client and the relay server.
//
// Unlike a discriminated-union wire format, none of these shapes carries an
// explicit "type" field: a frame is classified structurally, by which
// required fields it successfully decodes into.
package protocol

import (
	"encoding/json"
	"fmt"
)

// AuthRequest is the first frame a client sends after the WebSocket
// handshake completes.
type AuthRequest struct {
	Name  string `json:"name"`
	Token string `json:"token"`
}

// Marshal encodes an AuthRequest as the wire JSON object.
func (r AuthRequest) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling auth request: %w", err)
	}
	return data, nil
}

// AuthReply is the server's single response to an AuthRequest.
type AuthReply struct {
	Success bool `json:"success"`
}

// Marshal encodes an AuthReply as the wire JSON object.
func (r AuthReply) Marshal() ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshaling auth reply: %w", err)
	}
	return data, nil
}

// Clip is the wire representation of a clipboard update, sent in either
// direction once a session is authenticated.
type Clip struct {
	Text      string `json:"text"`
	Timestamp uint64 `json:"timestamp"`
}

// Marshal encodes a Clip as the wire JSON object.
func (c Clip) Marshal() ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshaling clip: %w", err)
	}
	return data, nil
}

// ParseAuthReply decodes data as an AuthReply. It fails if data does not
// contain a boolean "success" field, matching the auth-reply contract: a
// parse failure here aborts the connect attempt rather than being logged
// and ignored.
func ParseAuthReply(data []byte) (AuthReply, error) {
	var probe struct {
		Success *bool `json:"success"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return AuthReply{}, fmt.Errorf("decoding auth reply: %w", err)
	}
	if probe.Success == nil {
		return AuthReply{}, fmt.Errorf("decoding auth reply: missing \"success\" field")
	}
	return AuthReply{Success: *probe.Success}, nil
}

// ParseClip decodes data as a Clip. Returns an error if either required
// field is absent.
func ParseClip(data []byte) (Clip, error) {
	var probe struct {
		Text      *string `json:"text"`
		Timestamp *uint64 `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return Clip{}, fmt.Errorf("decoding clip: %w", err)
	}
	if probe.Text == nil || probe.Timestamp == nil {
		return Clip{}, fmt.Errorf("decoding clip: missing \"text\" or \"timestamp\" field")
	}
	return Clip{Text: *probe.Text, Timestamp: *probe.Timestamp}, nil
}

// ClassifyApplicationFrame inspects a text-frame payload received after
// authentication and reports which known shape it matches. Only Clip is
// valid on this path (an AuthReply only ever arrives once, during the
// handshake); anything else is an unrecognized shape and the caller should
// treat it as a message error.
func ClassifyApplicationFrame(data []byte) (Clip, error) {
	c, err := ParseClip(data)
	if err != nil {
		return Clip{}, fmt.Errorf("unrecognized application frame: %w", err)
	}
	return c, nil
}
