package logger

// nopLogger discards everything. Fatal still exits to keep the contract.
type nopLogger struct{}

var _ Logger = nopLogger{}

// Nop returns a Logger that drops all records.
func Nop() Logger { return nopLogger{} }

func (nopLogger) Debug(string, ...any) {}

func (nopLogger) Info(string, ...any) {}

func (nopLogger) Warn(string, ...any) {}

func (nopLogger) Error(string, ...any) {}

func (nopLogger) Fatal(string, ...any) { osExit(1) }

func (nopLogger) With(...any) Logger { return nopLogger{} }

func (nopLogger) Level() LogLevel { return FatalLevel }

func (nopLogger) SetLevel(LogLevel) {}
