// Package tasks defines the structure for tasks that are sent to Kafka.
package tasks

// IngestionTask represents a knowledge-base document ingestion job.
// ObjectName 指向 MinIO 桶中的源文档。
type IngestionTask struct {
	ObjectName  string `json:"object_name"`
	Replace     bool   `json:"replace"`
	RequestedBy string `json:"requested_by"`
}
