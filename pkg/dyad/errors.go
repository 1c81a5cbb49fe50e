package dyad

import (
	"errors"
	"fmt"
)

// Code enumerates dyad's stable return codes. The gaps in the numbering are
// reserved for transport-specific codes.
type Code int

const (
	OK             Code = 0
	SysFail        Code = -1  // local syscall or runtime call failed
	NoCtx          Code = -2  // init incomplete
	TransportFail  Code = -3  // generic KVS/RPC transport failure
	BadCommit      Code = -4  // KVS commit failed
	BadLookup      Code = -5  // KVS lookup failed
	BadFetch       Code = -6  // fetch call failed
	BadResponse    Code = -7  // cannot build or read a fetch response
	BadRPC         Code = -8  // RPC setup (peer resolution, request) failed
	BadFileIO      Code = -9  // file I/O failed
	BadManagedPath Code = -10 // consumer or producer managed path is bad
	BadPack        Code = -12 // encoding a record failed
	BadUnpack      Code = -13 // decoding a record failed
	RPCFinished    Code = -17 // fetch stream ended before any data
	BadB64Decode   Code = -18 // reserved
	BadCommMode    Code = -19 // invalid communication mode
)

var codeNames = map[Code]string{
	OK:             "OK",
	SysFail:        "SYSFAIL",
	NoCtx:          "NOCTX",
	TransportFail:  "TRANSPORTFAIL",
	BadCommit:      "BADCOMMIT",
	BadLookup:      "BADLOOKUP",
	BadFetch:       "BADFETCH",
	BadResponse:    "BADRESPONSE",
	BadRPC:         "BADRPC",
	BadFileIO:      "BADFIO",
	BadManagedPath: "BADMANAGEDPATH",
	BadPack:        "BADPACK",
	BadUnpack:      "BADUNPACK",
	RPCFinished:    "RPC_FINISHED",
	BadB64Decode:   "BAD_B64DECODE",
	BadCommMode:    "BAD_COMM_MODE",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// Error carries a Code alongside the underlying cause. Hook bodies log these
// and discard them; they never reach the host application.
type Error struct {
	Code Code
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Code.String()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// coded wraps err with a return code. A nil err yields a bare coded error.
func coded(code Code, err error) error {
	return &Error{Code: code, Err: err}
}

// codedf wraps a formatted message with a return code.
func codedf(code Code, format string, args ...any) error {
	return &Error{Code: code, Err: fmt.Errorf(format, args...)}
}

// CodeOf extracts the return code from an error chain. A nil error is OK;
// an error without a Code is SysFail.
func CodeOf(err error) Code {
	if err == nil {
		return OK
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return SysFail
}

// IsCode reports whether the error chain carries the given code.
func IsCode(err error, code Code) bool {
	return CodeOf(err) == code
}
