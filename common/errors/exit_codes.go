package errors

type ExitCode int

const (
	GenericFailureExitCode ExitCode = 1

	// Startup
	ConfigFailureExitCode    ExitCode = 70
	LogLevelFailureExitCode  ExitCode = 71
	StoreInitFailureExitCode ExitCode = 72

	// Runtime
	DispatcherFailureExitCode ExitCode = 80
)
