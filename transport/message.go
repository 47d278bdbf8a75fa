// Package transport implements the CDP Transport component:
// a single WebSocket endpoint that serializes outbound command envelopes,
// parses inbound envelopes, and detects connection loss.
package transport

import (
	"encoding/json"

	"github.com/mailru/easyjson/jlexer"
	"github.com/mailru/easyjson/jwriter"
)

// Message is the JSON envelope exchanged over the CDP WebSocket. Outbound
// messages set ID/Method/Params/SessionID. Inbound messages are either a
// response (ID set, Result or Error set) or an event (Method set, Params set);
// SessionID scopes either to a target.
type Message struct {
	ID        int64           `json:"id,omitempty"`
	Method    string          `json:"method,omitempty"`
	Params    json.RawMessage `json:"params,omitempty"`
	Result    json.RawMessage `json:"result,omitempty"`
	Error     *WireError      `json:"error,omitempty"`
	SessionID string          `json:"sessionId,omitempty"`
}

// WireError is the {code, message, data} envelope CDP returns when a
// command fails.
type WireError struct {
	Code    int64           `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// IsEvent reports whether m is an event (has a method and no command id).
func (m *Message) IsEvent() bool {
	return m.Method != "" && m.ID == 0
}

// IsResponse reports whether m is a command response (has a nonzero id).
func (m *Message) IsResponse() bool {
	return m.ID != 0
}

// MarshalEasyJSON writes m's wire form using a reusable jwriter.Writer,
// hand-written in the style easyjson's generator would produce for this
// small, stable field set — avoiding a per-message reflection-based
// encoding/json pass on the hot transport path (conn.go reuses one Writer
// per connection; see Conn.Write).
func (m *Message) MarshalEasyJSON(w *jwriter.Writer) {
	w.RawByte('{')
	first := true
	if m.ID != 0 {
		w.RawString(`"id":`)
		w.Int64(m.ID)
		first = false
	}
	if m.Method != "" {
		if !first {
			w.RawByte(',')
		}
		w.RawString(`"method":`)
		w.String(m.Method)
		first = false
	}
	if len(m.Params) != 0 {
		if !first {
			w.RawByte(',')
		}
		w.RawString(`"params":`)
		w.Raw(m.Params, nil)
		first = false
	}
	if len(m.Result) != 0 {
		if !first {
			w.RawByte(',')
		}
		w.RawString(`"result":`)
		w.Raw(m.Result, nil)
		first = false
	}
	if m.Error != nil {
		if !first {
			w.RawByte(',')
		}
		w.RawString(`"error":`)
		w.RawString(`{"code":`)
		w.Int64(m.Error.Code)
		w.RawString(`,"message":`)
		w.String(m.Error.Message)
		if len(m.Error.Data) != 0 {
			w.RawString(`,"data":`)
			w.Raw(m.Error.Data, nil)
		}
		w.RawByte('}')
		first = false
	}
	if m.SessionID != "" {
		if !first {
			w.RawByte(',')
		}
		w.RawString(`"sessionId":`)
		w.String(m.SessionID)
	}
	w.RawByte('}')
}

// UnmarshalEasyJSON reads m's wire form from a reusable jlexer.Lexer. Unlike
// a generated unmarshaler it does not need to handle every CDP field shape:
// it only needs the envelope fields, leaving Params/Result as
// opaque json.RawMessage for domain packages to decode further.
func (m *Message) UnmarshalEasyJSON(l *jlexer.Lexer) {
	*m = Message{}
	if l.IsNull() {
		l.Skip()
		return
	}
	l.Delim('{')
	for !l.IsDelim('}') {
		key := l.UnsafeFieldName(false)
		l.WantColon()
		switch key {
		case "id":
			m.ID = l.Int64()
		case "method":
			m.Method = l.String()
		case "params":
			m.Params = append(json.RawMessage{}, l.Raw()...)
		case "result":
			m.Result = append(json.RawMessage{}, l.Raw()...)
		case "sessionId":
			m.SessionID = l.String()
		case "error":
			m.Error = &WireError{}
			l.Delim('{')
			for !l.IsDelim('}') {
				ek := l.UnsafeFieldName(false)
				l.WantColon()
				switch ek {
				case "code":
					m.Error.Code = l.Int64()
				case "message":
					m.Error.Message = l.String()
				case "data":
					m.Error.Data = append(json.RawMessage{}, l.Raw()...)
				default:
					l.SkipRecursive()
				}
				l.WantComma()
			}
			l.Delim('}')
		default:
			l.SkipRecursive()
		}
		l.WantComma()
	}
	l.Delim('}')
}
