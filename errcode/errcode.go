package errcode

// Code is a stable, bus-facing error identifier.
// It is a string newtype, comparable, allocation-free, and implements error.
type Code string

func (c Code) Error() string { return string(c) }

// Canonical codes. These travel in reply payloads; clients match on the
// string, so a code never changes once shipped.
const (
	OK                Code = "ok"
	Busy              Code = "busy"
	Unsupported       Code = "unsupported"
	InvalidParams     Code = "invalid_params"
	UnknownCapability Code = "unknown_capability"
	InvalidTopic      Code = "invalid_topic"

	// Pin controller.
	UnknownPin      Code = "unknown_pin"      // no such pad on this chip
	PinInaccessible Code = "pin_inaccessible" // firmware never granted the pad to this agent
	UnknownBus      Code = "unknown_bus"      // config references an I2C bus the platform lacks

	Error Code = "error" // generic fallback
)

// E keeps context and a cause alongside the code.
type E struct {
	C   Code
	Op  string
	Msg string
	Err error
}

func (e *E) Error() string {
	s := string(e.C)
	if e.Op != "" {
		s = e.Op + ": " + s
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}
func (e *E) Unwrap() error { return e.Err }
func (e *E) Code() Code    { return e.C }

// Of extracts a Code from an error, defaulting to Error.
func Of(err error) Code {
	if err == nil {
		return OK
	}
	if c, ok := err.(Code); ok {
		return c
	}
	type coder interface{ Code() Code }
	if x, ok := err.(coder); ok {
		return x.Code()
	}
	return Error
}
