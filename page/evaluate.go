package page

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/kuromi/browser-core/cdperr"
	"github.com/kuromi/browser-core/mux"
)

// EvaluateOptions control Runtime.evaluate's awaitPromise and
// returnByValue flags.
type EvaluateOptions struct {
	AwaitPromise   bool
	ReturnByValue  bool
	ExecutionCtxID int64
}

type remoteObject struct {
	Type        string          `json:"type"`
	Subtype     string          `json:"subtype"`
	ClassName   string          `json:"className"`
	Value       json.RawMessage `json:"value"`
	ObjectID    string          `json:"objectId"`
	Description string          `json:"description"`
}

type exceptionDetails struct {
	Text      string `json:"text"`
	Exception *struct {
		Description string `json:"description"`
		Value       any    `json:"value"`
	} `json:"exception"`
	StackTrace *struct {
		CallFrames []struct {
			FunctionName string `json:"functionName"`
			URL          string `json:"url"`
			LineNumber   int    `json:"lineNumber"`
		} `json:"callFrames"`
	} `json:"stackTrace"`
}

func (e *exceptionDetails) scriptError() *cdperr.Error {
	msg := e.Text
	if e.Exception != nil && e.Exception.Description != "" {
		msg = e.Exception.Description
	}
	stack := ""
	if e.StackTrace != nil {
		for _, f := range e.StackTrace.CallFrames {
			stack += f.FunctionName + " (" + f.URL + ":" + strconv.Itoa(f.LineNumber) + ")\n"
		}
	}
	return &cdperr.Error{Kind: cdperr.KindScriptError, Message: msg, Stack: stack}
}

// Evaluate maps to Runtime.evaluate, decoding the result into out (if
// non-nil) and translating a thrown exception into a ScriptError.
func Evaluate(ctx context.Context, m *mux.Multiplexer, sessionID, expr string, opts EvaluateOptions, out any) error {
	ctx, cancel := mux.Deadline(ctx, mux.DefaultCommandTimeout)
	defer cancel()

	params := map[string]any{
		"expression":    expr,
		"awaitPromise":  opts.AwaitPromise,
		"returnByValue": opts.ReturnByValue || out != nil,
	}
	if opts.ExecutionCtxID != 0 {
		params["contextId"] = opts.ExecutionCtxID
	}
	b, err := json.Marshal(params)
	if err != nil {
		return err
	}
	result, err := m.Send(ctx, "Runtime.evaluate", rawJSON(b), sessionID)
	if err != nil {
		return err
	}
	var wire struct {
		Result           remoteObject      `json:"result"`
		ExceptionDetails *exceptionDetails `json:"exceptionDetails"`
	}
	if err := json.Unmarshal(result, &wire); err != nil {
		return err
	}
	if wire.ExceptionDetails != nil {
		return wire.ExceptionDetails.scriptError()
	}
	if out == nil {
		return nil
	}
	if len(wire.Result.Value) == 0 {
		return nil
	}
	return json.Unmarshal(wire.Result.Value, out)
}

type rawJSON json.RawMessage

func (r rawJSON) MarshalJSON() ([]byte, error) { return r, nil }
