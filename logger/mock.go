package logger

import (
	"github.com/stretchr/testify/mock"
)

// MockLogger is a testify mock of Logger. Log calls are recorded as
// (msg, keysAndValues); With is recorded with its key-value arguments spread.
type MockLogger struct {
	mock.Mock
}

var _ Logger = (*MockLogger)(nil)

func NewMockLogger() *MockLogger {
	return &MockLogger{}
}

// Quiet accepts every log call and makes With return m. Expectations
// registered before Quiet are matched first.
func (m *MockLogger) Quiet() *MockLogger {
	for _, method := range []string{"Debug", "Info", "Warn", "Error"} {
		m.On(method, mock.Anything, mock.Anything).Return().Maybe()
	}
	m.On("With", mock.Anything, mock.Anything).Return(m).Maybe()

	return m
}

func (m *MockLogger) log(method, msg string, keysAndValues []any) {
	m.MethodCalled(method, msg, keysAndValues)
}

func (m *MockLogger) Debug(msg string, keysAndValues ...any) { m.log("Debug", msg, keysAndValues) }

func (m *MockLogger) Info(msg string, keysAndValues ...any) { m.log("Info", msg, keysAndValues) }

func (m *MockLogger) Warn(msg string, keysAndValues ...any) { m.log("Warn", msg, keysAndValues) }

func (m *MockLogger) Error(msg string, keysAndValues ...any) { m.log("Error", msg, keysAndValues) }

// Fatal records the call and does not exit.
func (m *MockLogger) Fatal(msg string, keysAndValues ...any) { m.log("Fatal", msg, keysAndValues) }

func (m *MockLogger) SetLevel(level Level) {
	m.Called(level)
}

func (m *MockLogger) Level() Level {
	return m.Called().Get(0).(Level)
}

func (m *MockLogger) With(keyValues ...any) Logger {
	return m.Called(keyValues...).Get(0).(Logger)
}
