package logfields

import "go.uber.org/zap"

func EventProvider(val string) zap.Field {
	return zap.String("event_provider", val)
}

func Event(val string) zap.Field {
	return zap.String("event", val)
}

// Reason describes why an item was skipped or an operation was not done.
func Reason(val string) zap.Field {
	return zap.String("reason", val)
}
