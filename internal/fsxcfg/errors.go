package fsxcfg

import "errors"

var (
	// ErrConfigFileRead is returned when the config file cannot be opened or read.
	ErrConfigFileRead = errors.New("cannot read config file")

	// ErrConfigInvalid marks a config file or flag value that fails validation.
	ErrConfigInvalid = errors.New("invalid config")

	// ErrUnknownKey is returned when a config file contains a key this version
	// of fsx does not recognize.
	ErrUnknownKey = errors.New("unknown config key")
)
