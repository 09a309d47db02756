package logclient

import "fmt"

// TopicNotFoundError indicates the requested topic does not exist
type TopicNotFoundError struct {
	Topic string
}

func (e TopicNotFoundError) Error() string {
	return fmt.Sprintf("topic not found: %s", e.Topic)
}

// PartitionNotFoundError indicates the requested partition does not exist
type PartitionNotFoundError struct {
	Topic     string
	Partition int32
}

func (e PartitionNotFoundError) Error() string {
	return fmt.Sprintf("partition %d not found for topic %s", e.Partition, e.Topic)
}
