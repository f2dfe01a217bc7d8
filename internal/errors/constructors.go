package errors

// ConfigNotFound reports a missing configuration file.
func ConfigNotFound(path string) *ClassifiedError {
	return New(CategoryConfig, SeverityFatal, "configuration file not found").
		WithContext("path", path)
}

// ConfigRequired reports an unset mandatory setting.
func ConfigRequired(field string) *ClassifiedError {
	return New(CategoryConfig, SeverityFatal, "required configuration missing").
		WithContext("field", field)
}

func ValidationFailed(field, reason string) *ClassifiedError {
	return New(CategoryValidation, SeverityFatal, "validation failed").
		WithContext("field", field).
		WithContext("reason", reason)
}

// StageFailed attributes cause to a pipeline stage, keeping the category of a
// classified cause.
func StageFailed(stage string, cause error) *ClassifiedError {
	category := CategoryGenerate
	if ce, ok := AsClassified(cause); ok {
		category = ce.Category
	}
	return Wrap(cause, category, SeverityFatal, "stage failed").
		WithContext("stage", stage)
}

func WorkspaceError(operation string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryFileSystem, SeverityFatal, "workspace operation failed").
		WithContext("operation", operation)
}

func GeneratorFailed(command string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryGenerate, SeverityFatal, "external generator failed").
		WithContext("command", command)
}

func GitAuthError(repo string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryAuth, SeverityFatal, "git authentication failed").
		WithContext("repository", repo)
}

// GitNetworkError marks a fetch or push failure as transient.
func GitNetworkError(repo string, cause error) *ClassifiedError {
	return WrapRetryable(cause, CategoryGit, SeverityWarning, "git network error").
		WithContext("repository", repo)
}

// ForgeRateLimited marks a GitHub rate limit response as transient.
func ForgeRateLimited(cause error) *ClassifiedError {
	return WrapRetryable(cause, CategoryForge, SeverityWarning, "forge rate limit exceeded")
}

func ForgeRequestFailed(op string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryForge, SeverityError, "forge request failed").
		WithContext("operation", op)
}

func NetworkTimeout(url string, cause error) *ClassifiedError {
	return WrapRetryable(cause, CategoryNetwork, SeverityWarning, "network timeout").
		WithContext("url", url)
}

func InternalError(message string, cause error) *ClassifiedError {
	return Wrap(cause, CategoryInternal, SeverityFatal, message)
}
