package config

type WorkerKeyStruct struct {
	RetryCompletionQueue string
	// RetryCompletionDelayed holds requeued jobs scored by the unix millisecond
	// they become due.
	RetryCompletionDelayed string
}

var WorkerKey = &WorkerKeyStruct{
	RetryCompletionQueue:   "retry_completion_queue",
	RetryCompletionDelayed: "retry_completion_delayed",
}
