package actorhttp

import (
	"encoding/json"
	"net/http"

	"github.com/arkeep-io/actorrpc/rpcerr"
)

// envelope mirrors the teacher's api.envelope response wrapper: successful
// payloads under "data", errors under "error".
type envelope map[string]any

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeOK(w http.ResponseWriter, payload any) {
	writeJSON(w, http.StatusOK, envelope{"data": payload})
}

func writeRPCError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code, ok := codeOfErr(err)
	if ok {
		switch code {
		case rpcerr.CodeUnauthorized, rpcerr.CodeInsecureAuthBlocked:
			status = http.StatusUnauthorized
		case rpcerr.CodeModuleMissing:
			status = http.StatusNotFound
		case rpcerr.CodeTimeout, rpcerr.CodeConnectionTimeout:
			status = http.StatusGatewayTimeout
		}
	}
	writeJSON(w, status, envelope{"error": toWireErrorBody(err)})
}

func toWireErrorBody(err error) any {
	var e *rpcerr.Error
	if as, ok := err.(*rpcerr.Error); ok {
		e = as
	} else {
		e = rpcerr.New(rpcerr.CodeRPCRemote, err.Error())
	}
	return e
}

func codeOfErr(err error) (rpcerr.Code, bool) { return rpcerr.CodeOf(err) }

func codeOf(err error) string {
	c, ok := rpcerr.CodeOf(err)
	if !ok {
		return "unknown"
	}
	return string(c)
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, envelope{"error": rpcerr.New(rpcerr.CodeModuleMissing, "method not allowed")})
}
