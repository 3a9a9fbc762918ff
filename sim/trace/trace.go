package trace

// Log is an append-only event log. The zero value is ready to use.
type Log struct {
	records []Record
}

// Append adds a record to the end of the log.
func (l *Log) Append(record Record) {
	l.records = append(l.records, record)
}

// Len returns the number of records.
func (l *Log) Len() int {
	return len(l.records)
}

// Records returns a copy of the recorded events in insertion order.
func (l *Log) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Lines returns the rendered log lines in insertion order.
func (l *Log) Lines() []string {
	out := make([]string, len(l.records))
	for i, r := range l.records {
		out[i] = r.Message
	}
	return out
}

// Last returns the most recent record, or false if the log is empty.
func (l *Log) Last() (Record, bool) {
	if len(l.records) == 0 {
		return Record{}, false
	}
	return l.records[len(l.records)-1], true
}

// Clone returns an independent copy of the log.
// Engines clone their log before a transition so earlier snapshots stay intact.
func (l Log) Clone() Log {
	return Log{records: l.Records()}
}
