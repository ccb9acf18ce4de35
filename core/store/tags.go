package store

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	tfsterrors "github.com/FocuswithJustin/tfstbench/core/errors"
	"github.com/FocuswithJustin/tfstbench/core/grf"
)

// TagCount is one line of tfst_tags_by_freq.txt.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ParseTagCounts reads "tag<TAB>count" lines. Blank lines are skipped.
func ParseTagCounts(text string) ([]TagCount, error) {
	var out []TagCount
	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		l := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(l) == "" {
			continue
		}
		i := strings.LastIndexByte(l, '\t')
		if i < 0 {
			return nil, fmt.Errorf("%w: tag list line %d: missing tab", tfsterrors.ErrInvalidInput, line)
		}
		n, err := strconv.Atoi(strings.TrimSpace(l[i+1:]))
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: tag list line %d: bad count %q", tfsterrors.ErrInvalidInput, line, l[i+1:])
		}
		out = append(out, TagCount{Tag: l[:i], Count: n})
	}
	return out, sc.Err()
}

// ImportTagFile loads a tag list in any of the graph encodings and replaces
// the index with it.
func (s *Store) ImportTagFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, tfsterrors.NewIO("read", path, err)
	}
	text, _, err := grf.Decode(data)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", tfsterrors.ErrInvalidInput, path, err)
	}
	counts, err := ParseTagCounts(text)
	if err != nil {
		return 0, tfsterrors.Wrapf(err, "reading %s", path)
	}
	return s.ImportTags(ctx, counts)
}

// ImportTags replaces the index. Repeated tags are summed.
func (s *Store) ImportTags(ctx context.Context, counts []TagCount) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM tags`); err != nil {
		return 0, err
	}
	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tags (tag, count) VALUES (?, ?)
		 ON CONFLICT(tag) DO UPDATE SET count = count + excluded.count`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()
	for _, c := range counts {
		if _, err := stmt.ExecContext(ctx, c.Tag, c.Count); err != nil {
			return 0, fmt.Errorf("importing tag %q: %w", c.Tag, err)
		}
	}
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM tags`).Scan(&n); err != nil {
		return 0, err
	}
	return n, tx.Commit()
}

// TopTags returns the n most frequent tags; ties are ordered by tag.
func (s *Store) TopTags(ctx context.Context, n int) ([]TagCount, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: limit must be positive", tfsterrors.ErrInvalidInput)
	}
	rows, err := s.db.QueryContext(ctx, `SELECT tag, count FROM tags ORDER BY count DESC, tag LIMIT ?`, n)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TagCount
	for rows.Next() {
		var c TagCount
		if err := rows.Scan(&c.Tag, &c.Count); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TagFrequency returns the count of one tag.
func (s *Store) TagFrequency(ctx context.Context, tag string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT count FROM tags WHERE tag = ?`, tag).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: tag %q", tfsterrors.ErrNotFound, tag)
	}
	return n, err
}
