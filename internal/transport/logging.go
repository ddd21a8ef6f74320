package transport

import (
	"encoding/json"

	applog "dbmeter/internal/log"
)

// LoggingTransport writes every state to the debug log.
type LoggingTransport struct{}

// NewLoggingTransport creates a new LoggingTransport instance.
func NewLoggingTransport() *LoggingTransport {
	logger.Infof("Using LoggingTransport")
	return &LoggingTransport{}
}

// Send logs data as JSON when debug logging is enabled.
func (lt *LoggingTransport) Send(data any) error {
	if applog.GetLevel() > applog.LevelDebug {
		return nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		logger.Debugf("Received (%T): %+v (JSON marshal error: %v)", data, data, err)
		return nil
	}
	logger.Debugf("Received: %s", b)
	return nil
}

// Close is a no-op for LoggingTransport.
func (lt *LoggingTransport) Close() error {
	return nil
}

var _ Transport = (*LoggingTransport)(nil)
