/*
Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package uadp

import "fmt"

// Code partitions decode/encode errors by phase.
type Code int

const (
	CodeOK Code = iota
	CodeWriteOverflow
	CodeWriteSecurity
	CodeReadShortFailed
	CodeReadIntFailed
	CodeReadEndOfBuffer
	CodeUnsupportedFlags1
	CodeUnsupportedFlags2
	CodeUnsupportedVersion
	CodeUnsupportedPublisherIDType
	CodeNoMatchingGroup
	CodeNoMatchingReader
	CodeSecurityNoneFailed
	CodeSecurityModeMismatch
	CodeSignatureInvalid
	CodeReplayRejected
	CodeDsmSizeCheckFailed
	CodeInvalidBit
	CodeUnsupportedFieldEncoding
	CodeUnsupportedMessageType
	CodeSecurityKeyNotFound
	CodeNonceInvalid
)

var codeNames = map[Code]string{
	CodeOK:                         "OK",
	CodeWriteOverflow:              "Write_Overflow",
	CodeWriteSecurity:              "Write_Security_Failed",
	CodeReadShortFailed:            "Read_Short_Failed",
	CodeReadIntFailed:              "Read_Int_Failed",
	CodeReadEndOfBuffer:            "Read_EndOfBuffer",
	CodeUnsupportedFlags1:          "Unsupported_Flags1",
	CodeUnsupportedFlags2:          "Unsupported_Flags2",
	CodeUnsupportedVersion:         "Unsupported_Version",
	CodeUnsupportedPublisherIDType: "Unsupported_PublisherIdType",
	CodeNoMatchingGroup:            "Read_NoMatchingGroup",
	CodeNoMatchingReader:           "Read_NoMatchingReader",
	CodeSecurityNoneFailed:         "Read_SecurityNone_Failed",
	CodeSecurityModeMismatch:       "Read_SecurityModeMismatch_Failed",
	CodeSignatureInvalid:           "Read_Signature_Failed",
	CodeReplayRejected:             "Read_Replay_Failed",
	CodeDsmSizeCheckFailed:         "Read_DsmSizeCheck_Failed",
	CodeInvalidBit:                 "Read_InvalidBit_Failed",
	CodeUnsupportedFieldEncoding:   "Unsupported_FieldEncoding",
	CodeUnsupportedMessageType:     "Unsupported_MessageType",
	CodeSecurityKeyNotFound:        "Read_SecurityKeyNotFound_Failed",
	CodeNonceInvalid:               "Read_Nonce_Failed",
}

func (c Code) String() string {
	if s, ok := codeNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Code(%d)", int(c))
}

// CodecError carries a Code alongside the underlying cause. NoMatchingGroup
// and NoMatchingReader are normal "not for us" outcomes, not
// application faults; callers should check Code rather than treat every
// non-nil error as a hard failure.
type CodecError struct {
	Code Code
	Err  error
}

func (e *CodecError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("uadp: %s: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("uadp: %s", e.Code)
}

func (e *CodecError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrNoMatchingGroup) etc. work by comparing Codes.
func (e *CodecError) Is(target error) bool {
	t, ok := target.(*CodecError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func newErr(code Code, err error) *CodecError {
	return &CodecError{Code: code, Err: err}
}

// Sentinel errors for errors.Is comparisons against the "not a fault"
// filter-miss outcomes and the hard-failure outcomes alike.
var (
	ErrNoMatchingGroup     = &CodecError{Code: CodeNoMatchingGroup}
	ErrNoMatchingReader    = &CodecError{Code: CodeNoMatchingReader}
	ErrUnsupportedVersion  = &CodecError{Code: CodeUnsupportedVersion}
	ErrUnsupportedFlags1   = &CodecError{Code: CodeUnsupportedFlags1}
	ErrUnsupportedFlags2   = &CodecError{Code: CodeUnsupportedFlags2}
	ErrSecurityNoneFailed  = &CodecError{Code: CodeSecurityNoneFailed}
	ErrSecurityModeMismatch = &CodecError{Code: CodeSecurityModeMismatch}
	ErrSignatureInvalid    = &CodecError{Code: CodeSignatureInvalid}
	ErrReplayRejected      = &CodecError{Code: CodeReplayRejected}
	ErrDsmSizeCheckFailed  = &CodecError{Code: CodeDsmSizeCheckFailed}
	ErrInvalidBit          = &CodecError{Code: CodeInvalidBit}
)
