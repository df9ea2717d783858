package metrics

// Ingestion.

// RecordAttemptSubmitted counts a created attempt.
func RecordAttemptSubmitted(testType string) {
	globalManager.attemptsSubmitted.WithLabelValues(testType).Inc()
}

// RecordIngestLatency observes upload plus create time.
func RecordIngestLatency(latencyMs float64) {
	globalManager.ingestLatency.Observe(latencyMs)
}

func RecordUploadFailure() { globalManager.uploadFailures.Inc() }
func RecordCommitFailure() { globalManager.commitFailures.Inc() }
func RecordCommitRetry()   { globalManager.commitRetries.Inc() }

// RecordNotification counts a trigger delivery; outcome is "sent" or "failed".
func RecordNotification(driver, outcome string) {
	globalManager.notifications.WithLabelValues(driver, outcome).Inc()
}

// Reconciliation and review.

// RecordResultApplied counts an applied worker outcome.
func RecordResultApplied(outcome string) {
	globalManager.resultsApplied.WithLabelValues(outcome).Inc()
}

func RecordResultParseError() { globalManager.resultParseErrors.Inc() }
func RecordResultDuplicate()  { globalManager.resultDuplicates.Inc() }

// RecordIntakeMessage counts a broker message by what happened to it.
func RecordIntakeMessage(outcome string) {
	globalManager.intakeMessages.WithLabelValues(outcome).Inc()
}

func RecordAssessment() { globalManager.assessments.Inc() }

// RecordValidationRejection counts an assessment refused on field.
func RecordValidationRejection(field string) {
	globalManager.validationRejections.WithLabelValues(field).Inc()
}

// RecordUnresolvedAthletes adds n dropped rows for a listing.
func RecordUnresolvedAthletes(listing string, n int) {
	if n <= 0 {
		return
	}
	globalManager.unresolvedAthletes.WithLabelValues(listing).Add(float64(n))
}

// RecordStoreLatency observes one record store call.
func RecordStoreLatency(driver, op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(driver, op).Observe(latencyMs)
}

// Result queue.

func UpdateQueueSize(size int)                  { globalManager.queueSize.Set(float64(size)) }
func UpdateQueueCapacity(capacity int)          { globalManager.queueCapacity.Set(float64(capacity)) }
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }
func RecordQueueEnqueue()                       { globalManager.queueEnqueued.Inc() }
func RecordQueueDequeue()                       { globalManager.queueDequeued.Inc() }
func RecordQueueEnqueueError()                  { globalManager.queueEnqueueErrors.Inc() }

// RecordQueueProcessingLatency observes enqueue latency.
func RecordQueueProcessingLatency(latencyMs float64) {
	globalManager.queueProcessingLatency.Observe(latencyMs)
}

// Workers.

func UpdateWorkerCount(count int)       { globalManager.workerCount.Set(float64(count)) }
func UpdateWorkerActiveCount(count int) { globalManager.workerActive.Set(float64(count)) }
func UpdateWorkerIdleCount(count int)   { globalManager.workerIdle.Set(float64(count)) }

// RecordWorkerProcessingLatency observes the time to apply one result.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed apply.
func RecordWorkerError(errorType string) {
	globalManager.workerErrors.WithLabelValues(errorType).Inc()
}

// HTTP.

// RecordHTTPRequest counts an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes an HTTP request in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorsByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

func UpdateSystemMemoryUsage(bytes uint64)  { globalManager.systemMemoryUsage.Set(float64(bytes)) }
func UpdateSystemGoroutineCount(count int)  { globalManager.systemGoroutineCount.Set(float64(count)) }
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }
