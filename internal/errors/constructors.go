package errors

// Config errors

func ConfigNotFound(path string) *MonitorError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

func ConfigRequired(field string) *MonitorError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *MonitorError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// Instrumentation errors

// AttachFailed reports a component that rejected listener registration.
// The component stays unmonitored.
func AttachFailed(component string, cause error) *MonitorError {
	return Wrap(cause, CategoryAttach, SeverityWarning, "listener registration rejected").
		WithContext("component", component)
}

// NotPushCompatible reports a metric backend that cannot be gathered for push.
func NotPushCompatible(backend string) *MonitorError {
	return New(CategoryExport, SeverityWarning, "metric registry is not push compatible").
		WithContext("backend", backend)
}

func ExportFailed(url string, cause error) *MonitorError {
	return Wrap(cause, CategoryExport, SeverityError, "metrics push failed").
		WithContext("url", url)
}

// External systems

func NetworkError(url string, cause error) *MonitorError {
	return Wrap(cause, CategoryNetwork, SeverityError, "network error").
		WithContext("url", url)
}

func StorageError(operation string, cause error) *MonitorError {
	return Wrap(cause, CategoryStorage, SeverityError, "storage operation failed").
		WithContext("operation", operation)
}

// Internal errors

func InternalError(message string, cause error) *MonitorError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
