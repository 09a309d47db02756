package logclient

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemory is an in-process LogClient backed by per-partition slices.
// It is used by tests and by the dev mode of the replayd binary.
type InMemory struct {
	mu         sync.RWMutex
	partitions map[string]map[int32][]*Record // topic -> partition -> records
	offsets    map[string]int64               // group/topic/partition -> committed offset
}

// NewInMemory creates an empty in-memory log client
func NewInMemory() *InMemory {
	return &InMemory{
		partitions: make(map[string]map[int32][]*Record),
		offsets:    make(map[string]int64),
	}
}

// CreateTopic creates a topic with the given number of partitions
func (c *InMemory) CreateTopic(topic string, partitions int32) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.partitions[topic]; exists {
		return
	}
	parts := make(map[int32][]*Record, partitions)
	for p := int32(0); p < partitions; p++ {
		parts[p] = nil
	}
	c.partitions[topic] = parts
}

// Append appends a record to a partition, assigning the next offset.
// The topic and partition are created on demand.
func (c *InMemory) Append(topic string, partition int32, record *Record) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	parts, exists := c.partitions[topic]
	if !exists {
		parts = make(map[int32][]*Record)
		c.partitions[topic] = parts
	}

	rec := record.Clone()
	rec.Topic = topic
	rec.Partition = partition
	rec.Offset = int64(len(parts[partition]))
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	parts[partition] = append(parts[partition], rec)
	return rec.Offset
}

// Partitions returns the partitions known for a topic
func (c *InMemory) Partitions(ctx context.Context, topic string) ([]int32, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	parts, exists := c.partitions[topic]
	if !exists {
		return nil, TopicNotFoundError{Topic: topic}
	}

	ids := make([]int32, 0, len(parts))
	for p := range parts {
		ids = append(ids, p)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// HighWaterMark returns the offset one past the last record in a partition
func (c *InMemory) HighWaterMark(ctx context.Context, topic string, partition int32) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records, err := c.partition(topic, partition)
	if err != nil {
		return 0, err
	}
	return int64(len(records)), nil
}

// OffsetForTimestamp returns the earliest offset whose timestamp is >= ts
func (c *InMemory) OffsetForTimestamp(ctx context.Context, topic string, partition int32, ts time.Time) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records, err := c.partition(topic, partition)
	if err != nil {
		return 0, err
	}
	for _, rec := range records {
		if !rec.Timestamp.Before(ts) {
			return rec.Offset, nil
		}
	}
	return int64(len(records)), nil
}

// ReadRange reads up to maxRecords records with offsets in [start, end)
func (c *InMemory) ReadRange(ctx context.Context, topic string, partition int32, start, end int64, maxRecords int) ([]*Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records, err := c.partition(topic, partition)
	if err != nil {
		return nil, err
	}

	if start < 0 {
		start = 0
	}
	hwm := int64(len(records))
	if end < 0 || end > hwm {
		end = hwm
	}
	if start >= end {
		return nil, nil
	}

	out := make([]*Record, 0, maxRecords)
	for off := start; off < end && len(out) < maxRecords; off++ {
		out = append(out, records[off].Clone())
	}
	return out, nil
}

// Produce appends a record to partition 0 of the topic (or the record's
// partition if it targets an existing one)
func (c *InMemory) Produce(ctx context.Context, topic string, record *Record) error {
	partition := record.Partition
	c.mu.RLock()
	if parts, exists := c.partitions[topic]; exists {
		if _, ok := parts[partition]; !ok {
			partition = 0
		}
	} else {
		partition = 0
	}
	c.mu.RUnlock()

	c.Append(topic, partition, record)
	return nil
}

// CommitOffset commits an offset for a consumer group
func (c *InMemory) CommitOffset(ctx context.Context, group, topic string, partition int32, offset int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.offsets[commitKey(group, topic, partition)] = offset
	return nil
}

// CommittedOffset returns the committed offset for a consumer group, or -1
func (c *InMemory) CommittedOffset(group, topic string, partition int32) int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if off, exists := c.offsets[commitKey(group, topic, partition)]; exists {
		return off
	}
	return -1
}

// Records returns a copy of the records in a partition
func (c *InMemory) Records(topic string, partition int32) []*Record {
	c.mu.RLock()
	defer c.mu.RUnlock()

	records, err := c.partition(topic, partition)
	if err != nil {
		return nil
	}
	out := make([]*Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}

func (c *InMemory) partition(topic string, partition int32) ([]*Record, error) {
	parts, exists := c.partitions[topic]
	if !exists {
		return nil, TopicNotFoundError{Topic: topic}
	}
	records, exists := parts[partition]
	if !exists {
		return nil, PartitionNotFoundError{Topic: topic, Partition: partition}
	}
	return records, nil
}

func commitKey(group, topic string, partition int32) string {
	return fmt.Sprintf("%s/%s/%d", group, topic, partition)
}
