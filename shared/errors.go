package shared

import "errors"

var (
	ErrNoLogger              = errors.New("no logger provided")
	ErrNoConfig              = errors.New("no config provided")
	ErrNoAPIKey              = errors.New("no API key provided")
	ErrNoEndpoint            = errors.New("no endpoint provided")
	ErrNoAgentID             = errors.New("no agent id provided")
	ErrNoDeployment          = errors.New("no deployment name provided")
	ErrNoSink                = errors.New("no UI sink provided")
	ErrNoEventHandler        = errors.New("no event handler provided")
	ErrEHandlerAlreadySet    = errors.New("event handler already set")
	ErrConnNotInitialized    = errors.New("connection not initialized")
	ErrConnAlreadyRunning    = errors.New("connection already running")
	ErrConnClosed            = errors.New("connection closed")
	ErrRunAlreadyActive      = errors.New("a run is already active in this session")
	ErrUnknownFunction       = errors.New("unknown function")
	ErrToolAlreadyRegistered = errors.New("tool already registered")
)
