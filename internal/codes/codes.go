package codes

import (
	"errors"
	"fmt"
)

// Code identifies a class of adapter failure
type Code string

const (
	StreamingUnsupported Code = "stream/streaming-unsupported"
	NotABuffer           Code = "filesystem/bad-file"
	SymlinkUnsupported   Code = "filesystem/symlink"
	AssetEmitFailure     Code = "compilation/asset-emit"
	FatalBuildFailure    Code = "compilation/fatal"
	CompilationFailure   Code = "compilation/errors"
	DivergentContext     Code = "config/divergent-context"
	NoConfig             Code = "config/missing"
)

// Messages maps adapter error codes to their descriptions
var Messages = map[Code]string{
	StreamingUnsupported: "Streaming not supported",
	NotABuffer:           "Virtual file is not a buffer",
	SymlinkUnsupported:   "A virtual file cannot be a symbolic link",
	AssetEmitFailure:     "Error reading an emitted asset",
	FatalBuildFailure:    "Bundler reported an unrecoverable error",
	CompilationFailure:   "Compilation finished with errors",
	DivergentContext:     "Managed configurations use different context directories",
	NoConfig:             "No bundler configuration given",
}

// Sentinels for errors.Is
var (
	ErrStreamingUnsupported = errors.New(Messages[StreamingUnsupported])
	ErrNotABuffer           = errors.New(Messages[NotABuffer])
	ErrSymlinkUnsupported   = errors.New(Messages[SymlinkUnsupported])
	ErrAssetEmit            = errors.New(Messages[AssetEmitFailure])
	ErrFatalBuild           = errors.New(Messages[FatalBuildFailure])
	ErrCompilation          = errors.New(Messages[CompilationFailure])
	ErrDivergentContext     = errors.New(Messages[DivergentContext])
	ErrNoConfig             = errors.New(Messages[NoConfig])
)

var sentinels = map[Code]error{
	StreamingUnsupported: ErrStreamingUnsupported,
	NotABuffer:           ErrNotABuffer,
	SymlinkUnsupported:   ErrSymlinkUnsupported,
	AssetEmitFailure:     ErrAssetEmit,
	FatalBuildFailure:    ErrFatalBuild,
	CompilationFailure:   ErrCompilation,
	DivergentContext:     ErrDivergentContext,
	NoConfig:             ErrNoConfig,
}

// Error is a coded failure tied to an operation and, when relevant, a path
type Error struct {
	Code Code
	Op   string
	Path string
	Err  error
}

// New creates a coded error. err may be nil.
func New(code Code, op, path string, err error) *Error {
	return &Error{Code: code, Op: op, Path: path, Err: err}
}

func (e *Error) Error() string {
	msg := GetErrorMessage(e.Code)

	switch {
	case e.Path != "" && e.Err != nil:
		return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Path, msg, e.Err)
	case e.Path != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.Path, msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, msg, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
}

func (e *Error) Unwrap() []error {
	errs := make([]error, 0, 2)
	if s, ok := sentinels[e.Code]; ok {
		errs = append(errs, s)
	}

	if e.Err != nil {
		errs = append(errs, e.Err)
	}

	return errs
}

// GetErrorMessage returns a human-readable message for an error code
func GetErrorMessage(code Code) string {
	if msg, ok := Messages[code]; ok {
		return msg
	}

	return fmt.Sprintf("Unknown error (%s)", string(code))
}

// CodeOf returns the code of the first coded error in err's chain
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}

	return "", false
}
