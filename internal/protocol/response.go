package protocol

import (
	"encoding/json"

	"github.com/Saiid2001/login-security-landscape/internal/domain"
	"github.com/Saiid2001/login-security-landscape/internal/lease"
)

// SessionGrant is the per-session payload of a grant reply: the session
// record, its cookie/local-storage blob, and the login form when the
// catalog knows one.
type SessionGrant struct {
	Session     domain.Session    `json:"session"`
	SessionData json.RawMessage   `json:"session_data"`
	LoginForm   *domain.LoginForm `json:"loginform,omitempty"`
}

type SingleReply struct {
	Success bool `json:"success"`
	SessionGrant
}

type BatchReply struct {
	Success  bool           `json:"success"`
	Site     string         `json:"site"`
	Sessions []SessionGrant `json:"sessions"`
}

type AckReply struct {
	Success bool `json:"success"`
}

type ErrorReply struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func NewSingleReply(g *lease.Grant) SingleReply {
	return SingleReply{Success: true, SessionGrant: toSessionGrant(*g)}
}

func NewBatchReply(b *lease.BatchGrant) BatchReply {
	sessions := make([]SessionGrant, 0, len(b.Grants))
	for _, g := range b.Grants {
		sessions = append(sessions, toSessionGrant(g))
	}
	return BatchReply{Success: true, Site: b.Site, Sessions: sessions}
}

func NewAckReply() AckReply {
	return AckReply{Success: true}
}

func NewErrorReply(message string) ErrorReply {
	return ErrorReply{Success: false, Error: message}
}

func toSessionGrant(g lease.Grant) SessionGrant {
	return SessionGrant{
		Session:     g.Session,
		SessionData: g.SessionData,
		LoginForm:   g.LoginForm,
	}
}
