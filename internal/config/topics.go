package config

const (
	// TopicIngestTask is the NSQ topic carrying queued document ingestion tasks.
	TopicIngestTask = "ingest.task"

	// ChannelIngestWorkers is the consumer channel shared by the worker pool.
	// A single channel means each task message is delivered to exactly one
	// worker; the database claim is still the authority on ownership.
	ChannelIngestWorkers = "workers"
)
