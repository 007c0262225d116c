// Package msk adapts Lambda MSK trigger batches to product changes.
package msk

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/aws/aws-lambda-go/events"
	"github.com/example/stockroom/internal/gateway"
	"github.com/example/stockroom/internal/infrastructure/kafka"
)

// Record is one decoded message from a trigger batch.
type Record struct {
	Topic     string
	Partition int64
	Offset    int64
	Change    gateway.Change
}

// ConvertFromKafkaRecord decodes the base64 value Lambda hands over and parses
// it as a change written by kafka.Producer.
func ConvertFromKafkaRecord(record events.KafkaRecord) (gateway.Change, error) {
	value, err := base64.StdEncoding.DecodeString(record.Value)
	if err != nil {
		return gateway.Change{}, fmt.Errorf("decode record %s/%d@%d: %w", record.Topic, record.Partition, record.Offset, err)
	}
	return kafka.DecodeChange(value)
}

// ConvertFromKafkaEvent flattens a trigger batch into records ordered by
// partition and offset. Records that cannot be decoded are returned as errors
// and left out; retrying them would fail the same way.
func ConvertFromKafkaEvent(event events.KafkaEvent) ([]Record, []error) {
	var (
		records []Record
		errs    []error
	)
	for _, batch := range event.Records {
		for _, r := range batch {
			c, err := ConvertFromKafkaRecord(r)
			if err != nil {
				errs = append(errs, err)
				continue
			}
			records = append(records, Record{Topic: r.Topic, Partition: r.Partition, Offset: r.Offset, Change: c})
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Topic != records[j].Topic {
			return records[i].Topic < records[j].Topic
		}
		if records[i].Partition != records[j].Partition {
			return records[i].Partition < records[j].Partition
		}
		return records[i].Offset < records[j].Offset
	})
	return records, errs
}
