// Package protocol defines the request/reply wire format of the session
// API. Requests carry a "type" discriminator and decode into a closed
// variant set; the server replies with exactly one envelope per request.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

const (
	TypeGetSession          = "get_session"
	TypeGetSpecificSession  = "get_specific_session"
	TypeGetSessions         = "get_sessions"
	TypeGetSpecificSessions = "get_specific_sessions"
	TypeUnlockSession       = "unlock_session"
)

// DefaultBatchSize applies when a batch request omits k.
const DefaultBatchSize = 2

// Request is the closed set of decoded messages. Only types in this
// package implement it.
type Request interface {
	Type() string
}

// GetSession asks for a single non-pinned lease.
type GetSession struct {
	Experiment string
}

// GetSpecificSession asks for a single lease pinned to a site.
type GetSpecificSession struct {
	Experiment string
	Site       string
}

// GetSessions asks for k sessions of one website, from distinct accounts.
type GetSessions struct {
	Experiment string
	K          int
}

// GetSpecificSessions is the batch request pinned to a site.
type GetSpecificSessions struct {
	Experiment string
	Site       string
	K          int
}

// UnlockSession releases a previously granted session.
type UnlockSession struct {
	Experiment string
	SessionID  string
}

func (GetSession) Type() string          { return TypeGetSession }
func (GetSpecificSession) Type() string  { return TypeGetSpecificSession }
func (GetSessions) Type() string         { return TypeGetSessions }
func (GetSpecificSessions) Type() string { return TypeGetSpecificSessions }
func (UnlockSession) Type() string       { return TypeUnlockSession }

type envelope struct {
	Type       string `json:"type"`
	Experiment string `json:"experiment"`
	Site       string `json:"site"`
	K          *int   `json:"k"`
	SessionID  string `json:"session_id"`
}

// Decode parses a raw message into one of the request variants. Any
// failure here is a validation error: the caller should fix the request
// rather than retry it.
func Decode(data []byte) (Request, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}

	if env.Type == "" {
		return nil, errors.New("request type is required")
	}
	if env.Experiment == "" {
		return nil, errors.New("experiment is required")
	}

	switch env.Type {
	case TypeGetSession:
		return GetSession{Experiment: env.Experiment}, nil

	case TypeGetSpecificSession:
		if env.Site == "" {
			return nil, errors.New("site is required")
		}
		return GetSpecificSession{Experiment: env.Experiment, Site: env.Site}, nil

	case TypeGetSessions:
		k, err := batchSize(env.K)
		if err != nil {
			return nil, err
		}
		return GetSessions{Experiment: env.Experiment, K: k}, nil

	case TypeGetSpecificSessions:
		if env.Site == "" {
			return nil, errors.New("site is required")
		}
		k, err := batchSize(env.K)
		if err != nil {
			return nil, err
		}
		return GetSpecificSessions{Experiment: env.Experiment, Site: env.Site, K: k}, nil

	case TypeUnlockSession:
		if env.SessionID == "" {
			return nil, errors.New("session_id is required")
		}
		return UnlockSession{Experiment: env.Experiment, SessionID: env.SessionID}, nil

	default:
		return nil, fmt.Errorf("illegal request type %s", env.Type)
	}
}

func batchSize(k *int) (int, error) {
	if k == nil {
		return DefaultBatchSize, nil
	}
	if *k < 1 {
		return 0, fmt.Errorf("k must be at least 1, got %d", *k)
	}
	return *k, nil
}
