package memory

// Stats returns aggregate memory statistics.
func (s *Store) Stats() (*Stats, error) {
	stats := &Stats{
		ByImportance: map[string]int{},
		ByCategory:   map[string]int{},
	}

	rows, err := s.db.Query(`SELECT importance, COUNT(*) FROM memories GROUP BY importance`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var imp string
		var n int
		if err := rows.Scan(&imp, &n); err != nil {
			return nil, err
		}
		stats.ByImportance[imp] = n
		stats.Total += n
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	memories, err := s.AllMemories()
	if err != nil {
		return nil, err
	}
	for _, m := range memories {
		stats.ByCategory[Classify(m)]++
	}

	return stats, nil
}

// PruneStale deletes memories at or below maxImportance whose
// last_accessed is older than cutoff (epoch ms). Returns the number
// removed. Critical memories are never pruned regardless of age.
func (s *Store) PruneStale(cutoff int64, maxImportance Importance) (int, error) {
	memories, err := s.AllMemories()
	if err != nil {
		return 0, err
	}

	ceiling := maxImportance.Rank()
	if ceiling >= ImportanceCritical.Rank() {
		ceiling = ImportanceHigh.Rank()
	}

	var stale []int64
	for _, m := range memories {
		if m.LastAccessed < cutoff && m.Importance.Rank() <= ceiling {
			stale = append(stale, m.ID)
		}
	}
	return s.BatchDelete(stale)
}
