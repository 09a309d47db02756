package logclient

import (
	"context"
	"time"
)

// Record represents a single message addressed by (topic, partition, offset)
type Record struct {
	// Topic is the topic the record belongs to
	Topic string
	// Partition is the partition ID
	Partition int32
	// Offset is the monotonically increasing offset per partition
	Offset int64
	// Key is the record key (nil if the record has no key)
	Key []byte
	// Value is the record payload (nil if the record has no value)
	Value []byte
	// Headers contains metadata, tracing, content-type, etc.
	Headers map[string]string
	// Timestamp is the record timestamp assigned by the log
	Timestamp time.Time
}

// Clone returns a deep copy of the record
func (r *Record) Clone() *Record {
	c := *r
	if r.Key != nil {
		c.Key = append([]byte(nil), r.Key...)
	}
	if r.Value != nil {
		c.Value = append([]byte(nil), r.Value...)
	}
	if r.Headers != nil {
		c.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			c.Headers[k] = v
		}
	}
	return &c
}

// LogClient is the capability the replay core needs from the distributed log.
// Cluster connection management and credentials live behind the implementation.
type LogClient interface {
	// Partitions returns the partitions currently known for a topic
	Partitions(ctx context.Context, topic string) ([]int32, error)
	// HighWaterMark returns the offset one past the last record in a partition
	HighWaterMark(ctx context.Context, topic string, partition int32) (int64, error)
	// OffsetForTimestamp returns the earliest offset whose record timestamp is >= ts
	OffsetForTimestamp(ctx context.Context, topic string, partition int32, ts time.Time) (int64, error)
	// ReadRange reads up to maxRecords records with offsets in [start, end)
	ReadRange(ctx context.Context, topic string, partition int32, start, end int64, maxRecords int) ([]*Record, error)
	// Produce appends a record to a topic
	Produce(ctx context.Context, topic string, record *Record) error
	// CommitOffset commits an offset for a consumer group
	CommitOffset(ctx context.Context, group, topic string, partition int32, offset int64) error
}
