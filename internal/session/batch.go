package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/arkeep-io/actorrpc/capnwire"
)

// HandleBatch implements the HTTP batch path from spec §4.5/§4.11: one POST
// body may carry multiple calls, all decoded and dispatched before a single
// response is assembled. There is no per-call HTTP request affinity and no
// session state carried between calls in the same batch beyond what each
// call's own args provide.
func HandleBatch(ctx context.Context, target capnwire.Target, body []byte) ([]byte, error) {
	var calls []envelope
	if err := json.Unmarshal(body, &calls); err != nil {
		return nil, fmt.Errorf("session: invalid batch body: %w", err)
	}

	replies := make([]json.RawMessage, len(calls))
	for i, call := range calls {
		if call.kind() != KindCall {
			replies[i] = json.RawMessage(`{"error":{"code":"module-missing","message":"not a call frame"}}`)
			continue
		}
		result, err := target.Dispatch(ctx, call.Path, call.Args)
		id := valueOr(call.ID, i)
		var raw []byte
		var marshalErr error
		if err != nil {
			raw, marshalErr = json.Marshal(replyErr{ID: id, Error: toWireError(err)})
		} else {
			raw, marshalErr = json.Marshal(replyOK{ID: id, Result: result})
		}
		if marshalErr != nil {
			return nil, marshalErr
		}
		replies[i] = raw
	}

	return json.Marshal(replies)
}
