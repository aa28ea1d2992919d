package domain

// Shard is a connection-sized batch of symbols served by one session.
type Shard struct {
	ID      int      // 1-based, in partition order
	Symbols []string // ordered, at most batch size
}

// Partition splits symbols into consecutive shards of at most batchSize
// symbols each. Order is preserved within and across shards.
func Partition(symbols []string, batchSize int) ([]Shard, error) {
	if batchSize <= 0 {
		return nil, &ConfigurationError{Field: "symbols.batch_size", Reason: "must be >= 1"}
	}
	if len(symbols) == 0 {
		return nil, nil
	}

	shards := make([]Shard, 0, (len(symbols)+batchSize-1)/batchSize)
	for i := 0; i < len(symbols); i += batchSize {
		end := min(i+batchSize, len(symbols))
		batch := make([]string, end-i)
		copy(batch, symbols[i:end])
		shards = append(shards, Shard{ID: len(shards) + 1, Symbols: batch})
	}
	return shards, nil
}
