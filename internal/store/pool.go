package store

import (
	"sort"

	"github.com/nihongo-uy/examhub/internal/model"
)

// AggregatePools groups sections by display name into logical pools.
// Two physical sections sharing a name coalesce into one pool, and a
// question reachable through both counts once. Names contributing zero
// linked questions are excluded. This is a pure read projection: an
// empty database yields an empty slice.
func (s *Store) AggregatePools() ([]model.Pool, error) {
	sections, err := s.ListSections()
	if err != nil {
		return nil, err
	}

	byName := make(map[string]*model.Pool)
	seen := make(map[string]map[int64]bool)
	for _, sec := range sections {
		links, err := s.ListSectionQuestions(sec.ID)
		if err != nil {
			return nil, err
		}
		if len(links) == 0 {
			continue
		}
		pool, ok := byName[sec.Name]
		if !ok {
			pool = &model.Pool{Name: sec.Name}
			byName[sec.Name] = pool
			seen[sec.Name] = make(map[int64]bool)
		}
		pool.SectionIDs = append(pool.SectionIDs, sec.ID)
		for _, sq := range links {
			if seen[sec.Name][sq.QuestionID] {
				continue
			}
			seen[sec.Name][sq.QuestionID] = true
			pool.QuestionIDs = append(pool.QuestionIDs, sq.QuestionID)
		}
	}

	pools := make([]model.Pool, 0, len(byName))
	for _, pool := range byName {
		pool.Count = len(pool.QuestionIDs)
		pools = append(pools, *pool)
	}
	sort.Slice(pools, func(i, j int) bool { return pools[i].Name < pools[j].Name })
	return pools, nil
}

// PoolByName resolves one logical pool. A name with no sections or no
// linked questions returns nil.
func (s *Store) PoolByName(name string) (*model.Pool, error) {
	rows, err := s.db.Query(
		`SELECT DISTINCT sq.question_id
		 FROM sections sec
		 JOIN section_questions sq ON sq.section_id = sec.id
		 WHERE sec.name = ?
		 ORDER BY sq.question_id`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pool := &model.Pool{Name: name}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		pool.QuestionIDs = append(pool.QuestionIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(pool.QuestionIDs) == 0 {
		return nil, nil
	}
	pool.Count = len(pool.QuestionIDs)
	return pool, nil
}
