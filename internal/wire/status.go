package wire

import "fmt"

// Status is a three-digit DisOrder response code. The hundreds digit
// carries the broad class (2xx success, 4xx client error, 5xx transient
// server error); the tens digit carries the response shape (§4.A), so
// 231 is followed by a body and 241 by an event stream.
type Status int

const (
	// StatusOK is a final response with no body, message in the line.
	StatusOK Status = 200
	// StatusOKBody is followed by a dot-stuffed body.
	StatusOKBody Status = 231
	// StatusOKStream is followed by an indefinite event stream (log only).
	StatusOKStream Status = 241
	// StatusPlaying reports what is currently playing.
	StatusPlaying Status = 252
	// StatusNothingPlaying is a no-result success.
	StatusNothingPlaying Status = 259
	// StatusAuthOK concludes the challenge/response handshake.
	StatusAuthOK Status = 230
	// StatusGreeting is the connection banner (231-class: args in message).
	StatusGreeting Status = 231
	// StatusSyntaxError is a request the dispatcher could not parse or
	// recognise.
	StatusSyntaxError Status = 500
	// StatusAuthRequired marks a command attempted before authentication,
	// or a failed challenge/response.
	StatusAuthRequired Status = 530
	// StatusPermissionDenied marks insufficient rights for the command.
	StatusPermissionDenied Status = 551
	// StatusNotFound marks an unknown user, track, or queue id, or a
	// precondition failure tied to a specific target.
	StatusNotFound Status = 550
)

// Class returns the hundreds-digit class of the status.
func (s Status) Class() int {
	return int(s) / 100
}

// Units returns the units digit.
func (s Status) Units() int {
	return int(s) % 10
}

// HasBody reports whether this status is followed by a dot-stuffed body.
func (s Status) HasBody() bool {
	return (int(s)/10)%10 == 3
}

// HasStream reports whether this status is followed by an indefinite
// event stream (only ever true for the `log` command's 241).
func (s Status) HasStream() bool {
	return (int(s)/10)%10 == 4
}

// Line renders the initial response line: "NNN message".
func (s Status) Line(message string) string {
	return fmt.Sprintf("%03d %s", int(s), message)
}

// LineArgs renders the initial response line with quoted-string arguments
// embedded in the message, as used by x0/x2/x5-shaped responses.
func (s Status) LineArgs(args ...string) string {
	return fmt.Sprintf("%03d %s", int(s), QuoteArgs(args))
}
